// internal/workers/loan/create-loan-application/handler.go
package createloanapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/models"
	"loan-workers/internal/pipeline"
	"loan-workers/internal/store"
)

const (
	TaskType = "create-loan-application"
)

// ApplicationCreator is the slice of the store this worker writes through.
type ApplicationCreator interface {
	CreateApplication(ctx context.Context, app pipeline.Application) (*models.ApplicationRecord, error)
}

type Handler struct {
	config       *Config
	store        ApplicationCreator
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, store ApplicationCreator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
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
	app := input.Application
	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	rec, err := h.store.CreateApplication(ctx, app)
	switch {
	case stderrors.Is(err, store.ErrDuplicateApplication):
		return nil, errors.NewDuplicateApplicationError(app.ID)
	case err != nil:
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	h.logger.Info("application record created", map[string]interface{}{
		"applicationId": rec.ID,
		"loanAmount":    rec.LoanAmount,
		"tenure":        rec.Tenure,
	})

	return &Output{
		ApplicationID:     rec.ID,
		ApplicationStatus: rec.Status,
		CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339),
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
	})
}

// failJob retries database failures while the job has retries left and
// throws a BPMN error otherwise.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.RecordJobResult(TaskType, string(stdErr.Code))
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
