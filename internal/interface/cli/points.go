package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/spf13/cobra"
)

func newPointsCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Credit, deduct and inspect experience points",
	}

	add := &cobra.Command{
		Use:   "add <user> <amount>",
		Short: "Credit points",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			amount, err := intArg("amount", args[1])
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			res, err := rt.app.AddPoints.Handle(ctx, command.AddPointsCommand{UserID: args[0], Amount: amount, Reason: reason})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "credited %d, total %d, level %d\n", res.Credited, res.Experience.Points, res.Experience.Level)
			if res.Discarded > 0 {
				fmt.Fprintf(out, "discarded %d at the level cap\n", res.Discarded)
			}
			for _, up := range res.LevelUps {
				fmt.Fprintf(out, "level up %d -> %d\n", up.From, up.To)
			}
			return nil
		}),
	}
	add.Flags().String("reason", "", "Why the points were given")
	cmd.AddCommand(add)

	deduct := &cobra.Command{
		Use:   "deduct <user> <amount>",
		Short: "Remove points",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			amount, err := intArg("amount", args[1])
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			res, err := rt.app.DeductPoints.Handle(ctx, command.DeductPointsCommand{UserID: args[0], Amount: amount, Reason: reason})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deducted %d, total %d\n", res.Deducted, res.Experience.Points)
			return nil
		}),
	}
	deduct.Flags().String("reason", "", "Why the points were removed")
	cmd.AddCommand(deduct)

	set := &cobra.Command{
		Use:   "set <user> <points>",
		Short: "Overwrite the point total",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			points, err := intArg("points", args[1])
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			e, err := rt.app.SetPoints.Handle(ctx, command.SetPointsCommand{UserID: args[0], Points: points, Reason: reason})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total %d, level %d\n", e.Points, e.Level)
			return nil
		}),
	}
	set.Flags().String("reason", "", "Why the total was overwritten")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <user>",
		Short: "Show points and level",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			dto, err := rt.app.Experience.GetExperience(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "points=%d level=%d", dto.Points, dto.Level)
			if dto.NextLevel > 0 {
				fmt.Fprintf(out, " next=%d at %d", dto.NextLevel, dto.PointsToNextLevel)
			}
			fmt.Fprintln(out)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "audit <user>",
		Short: "Show the points audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			audits, err := rt.app.Experience.AuditTrail(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(audits) == 0 {
				fmt.Fprintln(out, "no audit entries")
				return nil
			}
			for _, a := range audits {
				fmt.Fprintf(out, "%s\t%s\t%d\t%t\t%s\n",
					a.CreatedAt.Format(time.RFC3339), a.Type, a.Points, a.LevelledUp, a.Reason)
			}
			return nil
		}),
	})
	return cmd
}
