package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"loan-workers/internal/kyc"
	"loan-workers/internal/pipeline"
)

func newWorkflowCmd() *cobra.Command {
	var documentsDir string
	var creditScore int
	var bureauURL string

	cmd := &cobra.Command{
		Use:   "workflow <file|->",
		Short: "Run the staged sales, verification, underwriting and sanction workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := readApplication(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			log := cliLogger()
			letters, err := letterGenerator(documentsDir, log)
			if err != nil {
				return err
			}

			var bureau pipeline.CreditBureau = &kyc.MockBureau{Score: creditScore}
			if bureauURL != "" {
				bureau = kyc.NewHTTPBureau(bureauURL, "", 5*time.Second)
			}

			state := pipeline.NewWorkflow(kyc.NewMockVerifier(), bureau, nil, letters, log).Run(cmd.Context(), app)
			if err := writeOutput(cmd.OutOrStdout(), rootFlags.format, state); err != nil {
				return err
			}
			if state.Status == pipeline.StatusFail {
				return fmt.Errorf("workflow failed: %s", state.ErrorMessage)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&documentsDir, "documents", "", "Directory for the sanction letter (empty disables it)")
	f.IntVar(&creditScore, "credit-score", kyc.NewMockBureau().Score, "Score returned by the mock credit bureau")
	f.StringVar(&bureauURL, "bureau-url", "", "Query an HTTP credit bureau instead of the mock")
	return cmd
}
