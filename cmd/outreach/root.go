package main

import (
	"github.com/spf13/cobra"

	"outreach/internal/app"
)

type rootOptions struct {
	ConfigPath string
	EnvFile    string
}

func NewRootCmd() *cobra.Command {
	options := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "outreach",
		Short:         "Send paced, personalised LinkedIn messages from a recipient list",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "config/settings.yaml", "settings file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&options.EnvFile, "env", ".env", "file with LINKEDIN_EMAIL / LINKEDIN_PASSWORD")

	cmd.AddCommand(
		NewRunCmd(options),
		NewSampleCmd(),
		NewValidateCmd(options),
		NewTallyCmd(options),
		NewScheduleCmd(options),
	)
	return cmd
}

func (o *rootOptions) app(cmd *cobra.Command) (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: o.ConfigPath,
		EnvFile:    o.EnvFile,
		Out:        cmd.OutOrStdout(),
	})
}
