// internal/workers/loan/search-evaluations/handler.go
package searchevaluations

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/pipeline"
	"loan-workers/internal/store"
)

const (
	TaskType = "search-evaluations"
)

type VerdictSearcher interface {
	Search(ctx context.Context, q store.VerdictQuery) (*store.VerdictSearchResult, error)
}

type Handler struct {
	config       *Config
	index        VerdictSearcher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, index VerdictSearcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		index:        index,
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
	query, err := h.buildQuery(input)
	if err != nil {
		return nil, err
	}

	res, err := h.index.Search(ctx, query)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewSearchTimeoutError()
		}
		return nil, errors.NewSearchQueryFailedError(err)
	}

	h.logger.Info("evaluation search completed", map[string]interface{}{
		"total":    res.Total,
		"returned": len(res.Hits),
		"tookMs":   res.Took,
	})

	return &Output{
		Evaluations: res.Hits,
		Total:       res.Total,
		Returned:    len(res.Hits),
		TookMs:      res.Took,
	}, nil
}

func (h *Handler) buildQuery(input *Input) (store.VerdictQuery, error) {
	q := store.VerdictQuery{
		ApplicationID: strings.TrimSpace(input.ApplicationID),
		EvaluatorID:   strings.TrimSpace(input.EvaluatorID),
		MinScore:      input.MinScore,
		MaxScore:      input.MaxScore,
		From:          input.From,
		Size:          input.Size,
	}

	if d := strings.ToUpper(strings.TrimSpace(input.Decision)); d != "" {
		switch pipeline.Decision(d) {
		case pipeline.DecisionApprove, pipeline.DecisionReject, pipeline.DecisionReview:
			q.Decision = d
		default:
			return q, errors.NewApplicationValidationFailedError(fmt.Sprintf("unknown decision %q", input.Decision))
		}
	}
	if s := strings.ToUpper(strings.TrimSpace(input.RunStatus)); s != "" {
		st, ok := pipeline.ParseStatus(s)
		if !ok {
			return q, errors.NewInvalidStatusError(input.RunStatus)
		}
		q.RunStatus = string(st)
	}

	for _, score := range []*int{q.MinScore, q.MaxScore} {
		if score != nil && (*score < 0 || *score > 100) {
			return q, errors.NewApplicationValidationFailedError(fmt.Sprintf("score bound %d outside 0-100", *score))
		}
	}
	if q.MinScore != nil && q.MaxScore != nil && *q.MinScore > *q.MaxScore {
		return q, errors.NewApplicationValidationFailedError("minScore is greater than maxScore")
	}
	if q.From < 0 {
		return q, errors.NewApplicationValidationFailedError("from must not be negative")
	}

	switch {
	case q.Size <= 0:
		q.Size = h.config.DefaultSize
	case q.Size > h.config.MaxSize:
		q.Size = h.config.MaxSize
	}
	return q, nil
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
