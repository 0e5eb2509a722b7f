package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/spf13/cobra"
)

func newStreakCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Record and inspect daily activity streaks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "record <user> <activity>",
		Short: "Record today's activity",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			res, err := rt.app.RecordActivity.Handle(ctx, command.RecordActivityCommand{UserID: args[0], ActivityID: args[1]})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d day(s)", res.Transition, res.Streak.Count)
			if res.FreezeUsed {
				fmt.Fprint(out, " (freeze used)")
			}
			if res.Archived != nil {
				fmt.Fprintf(out, " (archived run of %d)", res.Archived.Count)
			}
			fmt.Fprintln(out)
			return nil
		}),
	})

	freeze := &cobra.Command{
		Use:   "freeze <user> <activity>",
		Short: "Protect a streak from breaking for a number of days",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			if days == 0 {
				days = rt.app.FreezeStreak.DefaultDays()
			}
			res, err := rt.app.FreezeStreak.Handle(ctx, command.FreezeStreakCommand{UserID: args[0], ActivityID: args[1], Days: days})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "frozen until %s\n", timeutil.FormatDate(res.FrozenUntil))
			return nil
		}),
	}
	freeze.Flags().Int("days", 0, "Freeze length in days (default STREAK_FREEZE_DURATION)")
	cmd.AddCommand(freeze)

	cmd.AddCommand(&cobra.Command{
		Use:   "unfreeze <user> <activity>",
		Short: "Lift a freeze",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := rt.app.FreezeStreak.Unfreeze(ctx, command.UnfreezeStreakCommand{UserID: args[0], ActivityID: args[1]})
			if err != nil {
				return err
			}
			printStreak(cmd.OutOrStdout(), s)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <user> <activity>",
		Short: "Restart a streak at one day",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			s, err := rt.app.ResetStreak.Handle(ctx, command.ResetStreakCommand{UserID: args[0], ActivityID: args[1]})
			if err != nil {
				return err
			}
			printStreak(cmd.OutOrStdout(), s)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user> <activity>",
		Short: "Show the current streak",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			dto, err := rt.app.Streaks.GetStreak(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "count=%d started=%s last=%s frozen_until=%s active_today=%t\n",
				dto.Count,
				timeutil.FormatDate(dto.StartedAt),
				timeutil.FormatDate(dto.LastActivityAt),
				formatDate(dto.FrozenUntil),
				dto.ActiveToday,
			)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <user> <activity>",
		Short: "List archived streak runs",
		Args:  cobra.ExactArgs(2),
		RunE: rt.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			entries, err := rt.app.Streaks.History(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no history")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%d\t%s\t%s\n", e.Count, timeutil.FormatDate(e.StartedAt), timeutil.FormatDate(e.EndedAt))
			}
			return nil
		}),
	})
	return cmd
}

func printStreak(out io.Writer, s *streak.Streak) {
	fmt.Fprintf(out, "count=%d started=%s last=%s frozen_until=%s\n",
		s.Count,
		timeutil.FormatDate(s.StartedAt),
		timeutil.FormatDate(s.LastActivityAt),
		formatDate(s.FrozenUntil),
	)
}
