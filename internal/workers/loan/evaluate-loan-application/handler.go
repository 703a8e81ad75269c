// internal/workers/loan/evaluate-loan-application/handler.go
package evaluateloanapplication

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/pipeline"
)

const (
	TaskType = "evaluate-loan-application"
)

// Runner runs the evaluator pipeline for one application.
type Runner interface {
	Run(ctx context.Context, app pipeline.Application) pipeline.Result
}

type Handler struct {
	config       *Config
	runner       Runner
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, runner Runner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewApplicationValidationFailedError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// execute treats every terminal status, FAIL included, as a completed job.
// Only a run that could not reach a terminal status is an error.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	res := h.runner.Run(ctx, input.Application)
	if !res.Status.IsTerminal() {
		return nil, errors.NewPipelineFailedError(res.ApplicationID,
			fmt.Sprintf("run ended in non-terminal status %s", res.Status))
	}

	output := &Output{
		ApplicationID: res.ApplicationID,
		Status:        string(res.Status),
		FinalDecision: string(res.FinalDecision),
		Scores:        make(map[string]int, len(res.Verdicts)),
		Decisions:     make(map[string]string, len(res.Verdicts)),
		Summary:       pipeline.FormatSummary(res.Verdicts),
		ErrorMessage:  res.ErrorMessage,
		DurationMs:    res.Duration.Milliseconds(),
		Verdicts:      res.Verdicts,
	}
	for _, v := range res.Verdicts {
		output.Scores[v.EvaluatorID] = v.Score
		output.Decisions[v.EvaluatorID] = string(v.Decision)
	}
	if res.Document != nil {
		output.DocumentURL = res.Document.URL
	}

	h.logger.Info("evaluation finished", map[string]interface{}{
		"applicationId": res.ApplicationID,
		"status":        res.Status,
		"finalDecision": res.FinalDecision,
		"verdicts":      len(res.Verdicts),
	})
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.RecordJobResult(TaskType, "")
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
		"status": output.Status,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.RecordJobResult(TaskType, string(stdErr.Code))
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
