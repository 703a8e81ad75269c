// internal/workers/loan/notify-loan-decision/handler.go
package notifyloandecision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/models"
	"loan-workers/internal/pipeline"
)

const (
	TaskType = "notify-loan-decision"
)

type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, senderID, message string) (string, error)
}

type Handler struct {
	config       *Config
	email        EmailSender
	sms          SMSSender
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		email:        email,
		sms:          sms,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
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

// execute sends one message per enabled channel. The job only fails when
// every attempted channel failed; partial delivery completes with the
// failures recorded in the output.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	status, ok := pipeline.ParseStatus(strings.ToUpper(input.ApplicationStatus))
	if !ok {
		return nil, errors.NewInvalidStatusError(input.ApplicationStatus)
	}

	msg, notify, err := render(status, input)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("render %s message: %w", status, err))
	}
	output := &Output{Notifications: []models.Notification{}}
	if !notify {
		h.logger.Info("status does not notify the applicant", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"status":        status,
		})
		return output, nil
	}

	sentAt := h.now().Format(time.RFC3339)
	var (
		attempted int
		failed    int
		lastErr   error
		channels  []string
	)
	record := func(n models.Notification, err error) {
		n.ID = uuid.New().String()
		n.ApplicationID = input.ApplicationID
		n.SentAt = sentAt
		if n.Status != StatusDisabled {
			attempted++
		}
		if err != nil {
			failed++
			lastErr = err
			channels = append(channels, n.Channel)
			n.Status = StatusFailed
			n.Error = err.Error()
			h.logger.Error("notification send failed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"channel":       n.Channel,
				"error":         err.Error(),
			})
		}
		if n.Status == StatusSent {
			output.SentCount++
		}
		output.Notifications = append(output.Notifications, n)
	}

	record(h.sendEmail(ctx, input.Email, msg))
	record(h.sendSMS(ctx, input.Mobile, msg))

	if attempted > 0 && failed == attempted {
		return nil, errors.NewNotificationSendFailedError(strings.Join(channels, ","), lastErr)
	}

	h.logger.Info("notifications sent", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"status":        status,
		"sent":          output.SentCount,
		"failed":        failed,
	})
	return output, nil
}

func (h *Handler) sendEmail(ctx context.Context, to string, msg message) (models.Notification, error) {
	n := models.Notification{Channel: ChannelEmail, Recipient: to, Status: StatusDisabled}
	if !h.config.EmailEnabled || h.email == nil || to == "" {
		return n, nil
	}
	id, err := h.email.SendEmail(ctx, h.config.FromEmail, to, msg.Subject, msg.Body)
	n.Status = StatusSent
	n.MessageID = id
	return n, err
}

func (h *Handler) sendSMS(ctx context.Context, mobile string, msg message) (models.Notification, error) {
	n := models.Notification{Channel: ChannelSMS, Recipient: maskMobile(mobile), Status: StatusDisabled}
	if !h.config.SMSEnabled || h.sms == nil || mobile == "" {
		return n, nil
	}
	id, err := h.sms.SendSMS(ctx, h.phoneNumber(mobile), h.config.SenderID, msg.Body)
	n.Status = StatusSent
	n.MessageID = id
	return n, err
}

func (h *Handler) phoneNumber(mobile string) string {
	if strings.HasPrefix(mobile, "+") || len(mobile) != 10 {
		return mobile
	}
	return h.config.CountryCode + mobile
}

func maskMobile(mobile string) string {
	if len(mobile) < 4 {
		return mobile
	}
	return strings.Repeat("X", len(mobile)-4) + mobile[len(mobile)-4:]
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
