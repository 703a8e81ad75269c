// internal/common/metrics/metrics.go
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"loan-workers/internal/pipeline"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_pipeline_runs_total",
			Help: "Evaluation runs by terminal status",
		},
		[]string{"status"},
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loan_pipeline_run_duration_seconds",
			Help:    "Wall time of a full evaluation run",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	EvaluatorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_evaluator_decisions_total",
			Help: "Verdicts by evaluator and decision",
		},
		[]string{"evaluator", "decision"},
	)

	EvaluatorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_evaluator_duration_seconds",
			Help:    "Time spent in a single evaluator",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"evaluator"},
	)
)

// PipelineObserver records orchestrator activity in the collectors above.
type PipelineObserver struct{}

func (PipelineObserver) ObserveVerdict(_ context.Context, v pipeline.Verdict) {
	EvaluatorDecisions.WithLabelValues(v.EvaluatorID, string(v.Decision)).Inc()
	EvaluatorDuration.WithLabelValues(v.EvaluatorID).Observe(v.Duration.Seconds())
}

func (PipelineObserver) ObserveRun(_ context.Context, r pipeline.Result) {
	PipelineRuns.WithLabelValues(string(r.Status)).Inc()
	PipelineRunDuration.Observe(r.Duration.Seconds())
}

// TrackJob marks a job active and returns a func that ends the tracking.
func TrackJob(taskType string) func() {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	timer := prometheus.NewTimer(WorkerJobDuration.WithLabelValues(taskType))
	return func() {
		timer.ObserveDuration()
		WorkerJobsActive.WithLabelValues(taskType).Dec()
	}
}

// RecordJobResult counts a finished job. An empty errorCode counts as
// completed.
func RecordJobResult(taskType, errorCode string) {
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
