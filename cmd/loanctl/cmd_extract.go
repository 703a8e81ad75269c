package main

import (
	"strings"

	"github.com/spf13/cobra"

	"loan-workers/internal/extraction"
	"loan-workers/internal/pipeline"
)

func newExtractCmd() *cobra.Command {
	var appPath string

	cmd := &cobra.Command{
		Use:   "extract <message>...",
		Short: "Pull application fields out of a free-text message",
		Long: `Extract reads the message words as one customer message and merges any
fields it finds into the application given with --application.

  loanctl extract "My PAN is ABCDE1234F, I need 5 lakh over 36 months"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var app pipeline.Application
			if appPath != "" {
				var err error
				if app, err = readApplication(cmd.InOrStdin(), appPath); err != nil {
					return err
				}
			}
			res := extraction.Merge(app, strings.Join(args, " "))
			return writeOutput(cmd.OutOrStdout(), rootFlags.format, res)
		},
	}
	cmd.Flags().StringVar(&appPath, "application", "", "Application collected so far (JSON or YAML)")
	return cmd
}
