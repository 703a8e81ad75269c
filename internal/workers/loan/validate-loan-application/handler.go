// internal/workers/loan/validate-loan-application/handler.go
package validateloanapplication

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
	"loan-workers/internal/common/validation"
	"loan-workers/internal/pipeline"
)

const (
	TaskType = "validate-loan-application"
)

var (
	ErrApplicationValidationFailed = errors.New("APPLICATION_VALIDATION_FAILED")
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
		h.failJob(client, job, "APPLICATION_VALIDATION_FAILED", err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute completes with isValid=false when fields are only missing, so the
// process can go back and ask for them. Malformed values fail the job.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.Application == nil {
		return nil, fmt.Errorf("%w: application is required", ErrApplicationValidationFailed)
	}

	result, err := validation.ValidateApplication(input.Application)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplicationValidationFailed, err)
	}

	missing := []string{}
	var malformed []string
	for _, e := range result.Errors {
		if e.Code == "REQUIRED_FIELD_MISSING" {
			missing = append(missing, e.Field)
			continue
		}
		malformed = append(malformed, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}

	h.logger.Info("validation completed", map[string]interface{}{
		"isValid":      result.Valid,
		"errorCount":   len(result.Errors),
		"missingCount": len(missing),
	})

	if len(malformed) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrApplicationValidationFailed, strings.Join(malformed, "; "))
	}

	errs := result.Errors
	if errs == nil {
		errs = []validation.ValidationError{}
	}
	output := &Output{
		IsValid:          result.Valid,
		ValidationErrors: errs,
		MissingFields:    missing,
	}
	if result.Valid {
		app, err := normalize(input.Application)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrApplicationValidationFailed, err)
		}
		output.Application = app
	}
	return output, nil
}

func normalize(raw map[string]interface{}) (*pipeline.Application, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var app pipeline.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, err
	}
	app.CustomerName = strings.Join(strings.Fields(app.CustomerName), " ")
	app.PAN = strings.ToUpper(app.PAN)
	app.Aadhaar = strings.NewReplacer(" ", "", "-", "").Replace(app.Aadhaar)
	return &app, nil
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
		h.logger.Error("failed to complete job", map[string]interface{}{
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
