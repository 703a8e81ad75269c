// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"loan-workers/internal/common/config"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
)

// JobHandler is the signature every worker's Handle method has.
type JobHandler func(client worker.JobClient, job entities.Job)

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// JobRecorder receives the outcome and duration of every handled job.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// Job outcomes, taken from the command the handler sent back.
const (
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobThrew     = "bpmn_error"
	JobPanicked  = "panicked"
	JobNoReply   = "no_reply"
)

// NewWorker opens a job worker for taskType. Panics in handler are logged
// and the job is left to time out so the broker hands it out again. rec may
// be nil.
func NewWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, rec JobRecorder, log logger.Logger) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	builder := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler, rec, log)).
		MaxJobsActive(maxJobsActive(wcfg))
	if wcfg.Timeout > 0 {
		builder = builder.Timeout(time.Duration(wcfg.Timeout) * time.Millisecond)
	}

	w := &CamundaWorker{
		worker:   builder.Open(),
		logger:   log,
		taskType: taskType,
	}
	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": maxJobsActive(wcfg),
		"timeout_ms":    wcfg.Timeout,
	})
	return w
}

func maxJobsActive(wcfg config.WorkerConfig) int {
	if wcfg.MaxJobsActive <= 0 {
		return 5
	}
	return wcfg.MaxJobsActive
}

func instrument(taskType string, handler JobHandler, rec JobRecorder, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		done := metrics.TrackJob(taskType)
		start := time.Now()
		tracked := &outcomeClient{JobClient: client, status: JobNoReply}
		defer func() {
			if r := recover(); r != nil {
				tracked.status = JobPanicked
				metrics.RecordJobResult(taskType, "PANIC")
				log.Error("handler panicked", map[string]interface{}{
					"jobKey": job.Key,
					"panic":  fmt.Sprint(r),
				})
			}
			done()
			if rec != nil {
				ctx := context.Background()
				rec.RecordJobProcessed(ctx, taskType, tracked.status)
				rec.RecordJobDuration(ctx, taskType, time.Since(start), tracked.status)
			}
		}()
		handler(tracked, job)
	}
}

// outcomeClient notes which reply command the handler built. The last one
// wins, so a failed completion followed by a throw reports the throw.
type outcomeClient struct {
	worker.JobClient
	status string
}

func (c *outcomeClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.status = JobCompleted
	return c.JobClient.NewCompleteJobCommand()
}

func (c *outcomeClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.status = JobFailed
	return c.JobClient.NewFailJobCommand()
}

func (c *outcomeClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.status = JobThrew
	return c.JobClient.NewThrowErrorCommand()
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs. The shared Zeebe
// client stays open.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
