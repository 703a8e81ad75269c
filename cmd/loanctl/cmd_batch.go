package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"loan-workers/internal/pipeline"
)

type batchRow struct {
	ApplicationID string             `json:"applicationId" yaml:"applicationId"`
	Status        pipeline.RunStatus `json:"status" yaml:"status"`
	FinalDecision pipeline.Decision  `json:"finalDecision,omitempty" yaml:"finalDecision,omitempty"`
	Evaluators    int                `json:"evaluators" yaml:"evaluators"`
	ErrorMessage  string             `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var flags pipelineFlags
	var concurrency int
	var table bool

	cmd := &cobra.Command{
		Use:   "batch <file|->",
		Short: "Evaluate a list of applications concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apps, err := readApplications(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				return fmt.Errorf("no applications in %s", args[0])
			}
			orch, err := flags.orchestrator(cliLogger())
			if err != nil {
				return err
			}

			results, err := orch.RunBatch(cmd.Context(), apps, concurrency)
			if err != nil {
				return err
			}

			rows := make([]batchRow, len(results))
			for i, r := range results {
				rows[i] = batchRow{
					ApplicationID: r.ApplicationID,
					Status:        r.Status,
					FinalDecision: r.FinalDecision,
					Evaluators:    len(r.Verdicts),
					ErrorMessage:  r.ErrorMessage,
				}
			}
			if !table {
				return writeOutput(cmd.OutOrStdout(), rootFlags.format, rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "APPLICATION\tSTATUS\tDECISION\tEVALUATORS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ApplicationID, r.Status, r.FinalDecision, r.Evaluators)
			}
			return tw.Flush()
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Applications evaluated at once")
	cmd.Flags().BoolVar(&table, "table", false, "Print a plain table instead of structured output")
	return cmd
}
