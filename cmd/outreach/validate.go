package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"outreach/internal/config"
)

func NewValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the settings file and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.NewManager(root.ConfigPath, root.EnvFile).Load()
			if err != nil {
				var ce *config.Error
				if errors.As(err, &ce) {
					fmt.Fprintf(out, "%s is invalid:\n", root.ConfigPath)
					for _, p := range ce.Problems() {
						fmt.Fprintf(out, "  - %v\n", p)
					}
				}
				return err
			}
			fmt.Fprintf(out, "%s is valid\n", root.ConfigPath)
			fmt.Fprintf(out, "  templates: %d\n  limits: session %d, daily %d\n  storage: %s (%s)\n",
				len(cfg.Messaging.Templates),
				cfg.LinkedIn.Limits.SessionMessages, cfg.LinkedIn.Limits.DailyMessages,
				cfg.Storage.Driver, cfg.Storage.Path)
			if err := config.ValidateCredentials(cfg); err != nil {
				fmt.Fprintf(out, "  credentials: missing (%s, %s); only --dry-run will work\n", config.EnvEmail, config.EnvPassword)
			} else {
				fmt.Fprintln(out, "  credentials: present")
			}
			return nil
		},
	}
}
