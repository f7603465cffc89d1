package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"outreach/internal/recipient"
)

type sampleOptions struct {
	Out  string
	Fake int
}

func NewSampleCmd() *cobra.Command {
	options := &sampleOptions{}
	cmd := &cobra.Command{
		Use:   "sample [flags]",
		Short: "Write a sample recipients CSV",
		Example: `  # Two example rows
  outreach sample

  # Two example rows plus 20 generated ones
  outreach sample --fake 20 --out data/test.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.Fake < 0 {
				return fmt.Errorf("--fake must be >= 0")
			}
			if err := recipient.WriteSample(options.Out, options.Fake); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample recipients written to %s\n", options.Out)
			return nil
		},
	}
	cmd.Flags().StringVar(&options.Out, "out", "data/connections.csv", "destination file")
	cmd.Flags().IntVar(&options.Fake, "fake", 0, "number of generated rows to append")
	return cmd
}
