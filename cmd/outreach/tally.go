package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"outreach/internal/activity"
)

type tallyOptions struct {
	Today bool
}

func NewTallyCmd(root *rootOptions) *cobra.Command {
	options := &tallyOptions{}
	cmd := &cobra.Command{
		Use:   "tally [flags]",
		Short: "Count recorded outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var since time.Time
			if options.Today {
				since = activity.StartOfDay(time.Now())
			}
			t, err := a.Tally(cmd.Context(), since)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Sent: %d\n✗ Failed: %d\n⊘ Skipped: %d\nTotal: %d\n", t.Sent, t.Failed, t.Skipped, t.Total())
			if options.Today {
				limit := a.Config().LinkedIn.Limits.DailyMessages
				fmt.Fprintf(out, "Remaining today: %d of %d\n", max(limit-t.Sent, 0), limit)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&options.Today, "today", false, "only count outcomes since local midnight")
	return cmd
}
