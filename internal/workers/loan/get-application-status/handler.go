// internal/workers/loan/get-application-status/handler.go
package getapplicationstatus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

const (
	TaskType = "get-application-status"
)

type StatusReader interface {
	GetStatus(ctx context.Context, applicationID string) (*models.ApplicationStatus, bool, error)
}

type EvaluationLister interface {
	Evaluations(ctx context.Context, applicationID string) ([]models.EvaluationRecord, error)
}

type Handler struct {
	config       *Config
	status       StatusReader
	evaluations  EvaluationLister
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker. evaluations may be nil, in which case
// includeEvaluations is ignored.
func NewHandler(config *Config, status StatusReader, evaluations EvaluationLister, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		status:       status,
		evaluations:  evaluations,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	id := strings.TrimSpace(input.ApplicationID)
	if id == "" {
		return nil, errors.NewApplicationValidationFailedError("applicationId is required")
	}

	st, fromCache, err := h.status.GetStatus(ctx, id)
	if err != nil {
		return nil, mapStoreError(ctx, id, "get_status", err)
	}

	output := &Output{
		ApplicationID: st.ApplicationID,
		Status:        st.Status,
		FinalDecision: st.FinalDecision,
		DocumentURL:   st.DocumentURL,
		ErrorMessage:  st.ErrorMessage,
		UpdatedAt:     st.UpdatedAt.UTC().Format(time.RFC3339),
		FromCache:     fromCache,
	}

	if input.IncludeEvaluations && h.evaluations != nil {
		evals, err := h.evaluations.Evaluations(ctx, id)
		if err != nil {
			return nil, mapStoreError(ctx, id, "list_evaluations", err)
		}
		output.Evaluations = evals
	}

	h.logger.Info("status retrieved", map[string]interface{}{
		"applicationId": id,
		"status":        output.Status,
		"fromCache":     fromCache,
	})
	return output, nil
}

func mapStoreError(ctx context.Context, applicationID, queryType string, err error) error {
	switch {
	case stderrors.Is(err, store.ErrApplicationNotFound):
		return errors.NewApplicationNotFoundError(applicationID)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.NewQueryTimeoutError(queryType)
	default:
		return errors.NewQueryExecutionFailedError(queryType, err)
	}
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

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.RecordJobResult(TaskType, string(stdErr.Code))
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
