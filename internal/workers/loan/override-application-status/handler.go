// internal/workers/loan/override-application-status/handler.go
package overrideapplicationstatus

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
	"loan-workers/internal/pipeline"
	"loan-workers/internal/store"
)

const (
	TaskType = "override-application-status"
)

type StatusOverrider interface {
	OverrideStatus(ctx context.Context, applicationID string, status pipeline.RunStatus, reason, changedBy string) (*models.StatusChange, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, applicationID string) error
}

type Handler struct {
	config       *Config
	store        StatusOverrider
	cache        CacheInvalidator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the worker. cache may be nil when status caching is off.
func NewHandler(config *Config, store StatusOverrider, cache CacheInvalidator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
		cache:        cache,
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
	status, ok := pipeline.ParseStatus(strings.ToUpper(strings.TrimSpace(input.NewStatus)))
	if !ok {
		return nil, errors.NewInvalidStatusError(input.NewStatus)
	}
	changedBy := input.ChangedBy
	if changedBy == "" {
		changedBy = h.config.DefaultActor
	}

	change, err := h.store.OverrideStatus(ctx, id, status, input.Reason, changedBy)
	switch {
	case stderrors.Is(err, store.ErrApplicationNotFound):
		return nil, errors.NewApplicationNotFoundError(id)
	case stderrors.Is(err, store.ErrInvalidStatus):
		return nil, errors.NewInvalidStatusError(input.NewStatus)
	case err != nil:
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	// A stale cached status would outlive the override until its TTL.
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, id); err != nil {
			h.logger.Warn("status cache invalidation failed", map[string]interface{}{
				"applicationId": id,
				"error":         err.Error(),
			})
		}
	}

	return &Output{
		ApplicationID: change.ApplicationID,
		OldStatus:     change.OldStatus,
		NewStatus:     change.NewStatus,
		ChangedBy:     change.ChangedBy,
		ChangedAt:     change.CreatedAt.UTC().Format(time.RFC3339),
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
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.RecordJobResult(TaskType, "")
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":        job.Key,
		"applicationId": output.ApplicationID,
		"newStatus":     output.NewStatus,
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
