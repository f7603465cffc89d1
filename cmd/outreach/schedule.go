package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func NewScheduleCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run outreach repeatedly on schedule.cron until stopped",
		Long: `Runs outreach on the cron expression in schedule.cron (5 or 6 fields,
or descriptors such as @daily). The settings file is reloaded when it
changes. Under systemd (Type=notify) readiness and watchdog pings are sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if strings.TrimSpace(a.Config().Schedule.Cron) == "" {
				return errors.New("schedule.cron is not set")
			}
			return a.Schedule(cmd.Context())
		},
	}
}
