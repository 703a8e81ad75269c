// internal/workers/loan/evaluate-loan-application/handler_test.go
package evaluateloanapplication

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/evaluators"
	"loan-workers/internal/pipeline"
)

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{Application: pipeline.Application{
		ID:           "app-001",
		CustomerName: "Asha Rao",
		Mobile:       "9876543210",
		PAN:          "ABCDE1234F",
		Aadhaar:      "123456789012",
		LoanAmount:   500000,
		Tenure:       36,
		Income:       75000,
	}}
}

type fakeRunner struct {
	result pipeline.Result
}

func (f *fakeRunner) Run(_ context.Context, app pipeline.Application) pipeline.Result {
	res := f.result
	res.ApplicationID = app.ID
	return res
}

func TestHandler_Execute_Sanctioned(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{
		Status:        pipeline.StatusSanctioned,
		FinalDecision: pipeline.DecisionApprove,
		Verdicts: []pipeline.Verdict{
			{EvaluatorID: "AgentAlpha", DisplayName: "Sales Validator", Score: 100, Decision: pipeline.DecisionApprove},
			{EvaluatorID: "AgentZeta", DisplayName: "Sanction Authority", Score: 88, Decision: pipeline.DecisionApprove},
		},
		Document: &pipeline.DocumentRef{URL: "/documents/app-001.txt"},
		Duration: 1500 * time.Millisecond,
	}}
	handler := NewHandler(createTestConfig(), runner, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "app-001", output.ApplicationID)
	assert.Equal(t, "SANCTIONED", output.Status)
	assert.Equal(t, "APPROVE", output.FinalDecision)
	assert.Equal(t, map[string]int{"AgentAlpha": 100, "AgentZeta": 88}, output.Scores)
	assert.Equal(t, "APPROVE", output.Decisions["AgentZeta"])
	assert.Equal(t, "/documents/app-001.txt", output.DocumentURL)
	assert.Equal(t, int64(1500), output.DurationMs)
	assert.Contains(t, output.Summary, "**Sanction Authority**: Score 88/100")
}

func TestHandler_Execute_NonTerminal(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{Status: pipeline.StatusProcessing}}
	handler := NewHandler(createTestConfig(), runner, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), createTestInput())

	assert.Nil(t, output)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodePipelineFailed, stdErr.Code)
	assert.Equal(t, "app-001", stdErr.Metadata["applicationId"])
}

func TestHandler_Execute_Orchestrator(t *testing.T) {
	orch := pipeline.NewOrchestrator(evaluators.Default(pipeline.NewSeededRandom(7)), nil)
	handler := NewHandler(createTestConfig(), orch, logger.NewTestLogger(t))

	t.Run("complete application reaches a terminal status", func(t *testing.T) {
		output, err := handler.Execute(context.Background(), createTestInput())

		require.NoError(t, err)
		assert.Equal(t, "app-001", output.ApplicationID)
		assert.NotEmpty(t, output.Verdicts)
		assert.Len(t, output.Scores, len(output.Verdicts))
		assert.Equal(t, "AgentAlpha", output.Verdicts[0].EvaluatorID)
	})

	t.Run("empty application fails at sales", func(t *testing.T) {
		output, err := handler.Execute(context.Background(), &Input{Application: pipeline.Application{ID: "app-002"}})

		require.NoError(t, err)
		assert.Equal(t, "FAIL", output.Status)
		assert.Equal(t, "REJECT", output.FinalDecision)
		require.Len(t, output.Verdicts, 1)
		assert.Equal(t, "AgentAlpha", output.Verdicts[0].EvaluatorID)
	})
}

func TestHandler_Execute_DeadlineEndsRunAsCancelled(t *testing.T) {
	orch := pipeline.NewOrchestrator(evaluators.Default(pipeline.NewSeededRandom(7)), nil)
	handler := NewHandler(createTestConfig(), orch, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	output, err := handler.Execute(ctx, createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "FAIL", output.Status)
	assert.Contains(t, output.ErrorMessage, "evaluation cancelled")
	for _, v := range output.Verdicts {
		assert.NotEqual(t, true, v.Detail["degraded"], v.EvaluatorID)
	}
}
