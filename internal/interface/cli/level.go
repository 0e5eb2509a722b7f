package cli

import (
	"context"
	"fmt"

	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/spf13/cobra"
)

func newLevelCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Manage the level catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <number> <points-to-next-level>",
		Short: "Add a level to the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			number, err := intArg("number", args[0])
			if err != nil {
				return err
			}
			points, err := intArg("points-to-next-level", args[1])
			if err != nil {
				return err
			}
			lvl, err := rt.app.AddLevel.Handle(ctx, command.AddLevelCommand{Level: number, PointsToNextLevel: points})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "level %d added (%d points)\n", lvl.Number, lvl.PointsToNextLevel)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the level catalog",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			levels, err := rt.app.Levels.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(levels) == 0 {
				fmt.Fprintln(out, "no levels")
				return nil
			}
			for _, lvl := range levels {
				fmt.Fprintf(out, "%d\t%d\n", lvl.Number, lvl.PointsToNextLevel)
			}
			return nil
		}),
	})
	return cmd
}
