// loanctl runs the loan pipeline locally without a broker or stores.
//
// Usage:
//
//	loanctl evaluate application.yaml [--seed 42] [--stream]
//	loanctl batch applications.yaml [--concurrency 4]
//	loanctl workflow application.json [--credit-score 720]
//	loanctl extract "I earn 75k a month and need 5 lakh for 3 years"
//	loanctl registry check get-application-status vars.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loan-workers/internal/common/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel string
	format   string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Evaluate loan applications from the command line",
		Long:          "loanctl runs the evaluator pipeline and the staged sanction workflow\nagainst applications read from JSON or YAML files.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level written to stderr (debug, info, warn, error)")
	pf.StringVarP(&rootFlags.format, "output", "o", "json", "Output format: json or yaml")

	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newBatchCmd())
	root.AddCommand(newWorkflowCmd())
	root.AddCommand(newExtractCmd())
	root.AddCommand(newRegistryCmd())
	return root
}

func cliLogger() logger.Logger {
	return logger.NewStructured(rootFlags.logLevel, "console")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
