// internal/workers/loan/run-loan-workflow/handler.go
package runloanworkflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/pipeline"
)

const (
	TaskType = "run-loan-workflow"
)

// WorkflowRunner runs the strict sales, verification, underwriting and
// sanction sequence.
type WorkflowRunner interface {
	Run(ctx context.Context, app pipeline.Application) pipeline.WorkflowState
}

type Handler struct {
	config   *Config
	workflow WorkflowRunner
	logger   logger.Logger
}

func NewHandler(config *Config, workflow WorkflowRunner, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		workflow: workflow,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, "PIPELINE_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	state := h.workflow.Run(ctx, input.Application)

	output := &Output{
		ApplicationID: state.Application.ID,
		Status:        string(state.Status),
		CreditScore:   state.CreditScore,
		Steps:         state.Steps,
		ErrorMessage:  state.ErrorMessage,
	}
	if state.Document != nil {
		output.DocumentURL = state.Document.URL
	}
	for _, step := range state.Steps {
		if step.Result == pipeline.StepFail {
			output.FailedNode = step.Node
			break
		}
	}

	h.logger.Info("workflow finished", map[string]interface{}{
		"applicationId": output.ApplicationID,
		"status":        output.Status,
		"failedNode":    output.FailedNode,
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
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})
	metrics.RecordJobResult(TaskType, errorCode)

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
