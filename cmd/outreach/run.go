package main

import (
	"github.com/spf13/cobra"
)

type runOptions struct {
	DryRun bool
}

func NewRunCmd(root *rootOptions) *cobra.Command {
	options := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Message the recipients in the configured list",
		Example: `  # Show what would be sent without opening a browser
  outreach run --dry-run

  # Send using another settings file
  outreach run --config ./prod.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			_, err = a.Run(cmd.Context(), options.DryRun)
			return err
		},
	}
	cmd.Flags().BoolVar(&options.DryRun, "dry-run", false, "print the plan without authenticating or sending")
	return cmd
}
