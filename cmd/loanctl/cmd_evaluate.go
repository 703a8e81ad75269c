package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/evaluators"
	"loan-workers/internal/kyc"
	"loan-workers/internal/pipeline"
)

type pipelineFlags struct {
	seed         int64
	documentsDir string
	bureau       bool
	creditScore  int
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Int64Var(&f.seed, "seed", 0, "Seed for the stochastic evaluators (0 uses the clock)")
	fs.StringVar(&f.documentsDir, "documents", "", "Directory for sanction letters (empty disables them)")
	fs.BoolVar(&f.bureau, "bureau", false, "Add the credit bureau evaluator")
	fs.IntVar(&f.creditScore, "credit-score", kyc.NewMockBureau().Score, "Score returned by the mock credit bureau")
}

func (f *pipelineFlags) orchestrator(log logger.Logger) (*pipeline.Orchestrator, error) {
	letters, err := letterGenerator(f.documentsDir, log)
	if err != nil {
		return nil, err
	}
	evals := evaluators.Default(seededRandom(f.seed))
	if f.bureau {
		evals = append(evals, evaluators.NewBureau(&kyc.MockBureau{Score: f.creditScore}))
	}
	return pipeline.NewOrchestrator(evals, nil,
		pipeline.WithDocuments(letters),
		pipeline.WithLogger(log),
	), nil
}

// evaluation is the CLI view of a run.
type evaluation struct {
	pipeline.Result `yaml:",inline"`
	Scores          map[string]int    `json:"scores" yaml:"scores"`
	Decisions       map[string]string `json:"decisions" yaml:"decisions"`
	Summary         string            `json:"summary" yaml:"summary"`
}

func newEvaluation(res pipeline.Result) evaluation {
	out := evaluation{
		Result:    res,
		Scores:    make(map[string]int, len(res.Verdicts)),
		Decisions: make(map[string]string, len(res.Verdicts)),
		Summary:   pipeline.FormatSummary(res.Verdicts),
	}
	for _, v := range res.Verdicts {
		out.Scores[v.EvaluatorID] = v.Score
		out.Decisions[v.EvaluatorID] = string(v.Decision)
	}
	return out
}

func newEvaluateCmd() *cobra.Command {
	var flags pipelineFlags
	var stream bool

	cmd := &cobra.Command{
		Use:   "evaluate <file|->",
		Short: "Run every evaluator against one application",
		Long: `Evaluate reads one application (JSON or YAML) and runs the evaluator
pipeline to a terminal status.

  loanctl evaluate app.yaml
  loanctl evaluate - --stream < app.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := readApplication(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			orch, err := flags.orchestrator(cliLogger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !stream {
				return writeOutput(out, rootFlags.format, newEvaluation(orch.Run(cmd.Context(), app)))
			}
			return streamRun(out, orch.RunStreaming(cmd.Context(), app))
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&stream, "stream", false, "Print each evaluator as it starts and finishes")
	return cmd
}

func streamRun(w io.Writer, events <-chan pipeline.Event) error {
	var final *pipeline.Result
	for e := range events {
		switch e.Kind {
		case pipeline.EventStart:
			fmt.Fprintf(w, "%-14s %s (%s)\n", e.Kind, e.EvaluatorID, e.DisplayName)
		case pipeline.EventVerdict:
			fmt.Fprintf(w, "%-14s %s score=%d decision=%s\n", e.Kind, e.EvaluatorID, e.Verdict.Score, e.Verdict.Decision)
		case pipeline.EventComplete:
			final = e.Result
		}
	}
	if final == nil {
		return fmt.Errorf("pipeline ended without a result")
	}
	fmt.Fprintf(w, "%-14s status=%s decision=%s\n\n%s\n", pipeline.EventComplete, final.Status, final.FinalDecision, pipeline.FormatSummary(final.Verdicts))
	return nil
}
