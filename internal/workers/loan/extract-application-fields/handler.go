// internal/workers/loan/extract-application-fields/handler.go
package extractapplicationfields

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/extraction"
)

const (
	TaskType = "extract-application-fields"
)

var (
	ErrExtractionFailed = errors.New("EXTRACTION_FAILED")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, "EXTRACTION_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrExtractionFailed)
	}
	if h.config.MaxMessageLength > 0 && len(message) > h.config.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrExtractionFailed, h.config.MaxMessageLength)
	}

	ex := extraction.Merge(input.Application, message)

	h.logger.Info("fields extracted", map[string]interface{}{
		"applicationId": ex.Application.ID,
		"extracted":     len(ex.Fields),
		"missing":       len(ex.Missing),
	})

	return &Output{
		Application:     ex.Application,
		ExtractedFields: ex.Fields,
		MissingFields:   ex.Missing,
		IsComplete:      len(ex.Missing) == 0,
	}, nil
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
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.RecordJobResult(TaskType, "")
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":     job.Key,
		"isComplete": output.IsComplete,
	})
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
