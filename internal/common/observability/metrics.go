package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"loan-workers/internal/pipeline"
)

type Observability struct {
	serviceName   string
	meterProvider *metric.MeterProvider
	traceProvider *sdktrace.TracerProvider
	meter         otelmetric.Meter
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	verdictScore  otelmetric.Int64Histogram
}

// New exports through the default Prometheus registry.
func New(serviceName string) *Observability {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
}

// NewWithRegisterer also installs a TracerProvider. Spans are sampled and
// handed to the given processors; with none they are recorded and dropped.
func NewWithRegisterer(serviceName string, reg promclient.Registerer, processors ...sdktrace.SpanProcessor) *Observability {
	res := resource.NewSchemaless(semconv.ServiceName(serviceName))

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, p := range processors {
		traceOpts = append(traceOpts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{serviceName: serviceName, traceProvider: tp}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	runCounter, _ := meter.Int64Counter(
		"loan.evaluations",
		otelmetric.WithDescription("Evaluation runs by terminal status"),
	)
	runDuration, _ := meter.Float64Histogram(
		"loan.evaluation.duration",
		otelmetric.WithDescription("Evaluation run duration"),
		otelmetric.WithUnit("ms"),
	)
	verdictScore, _ := meter.Int64Histogram(
		"loan.verdict.score",
		otelmetric.WithDescription("Scores given by each evaluator"),
	)

	return &Observability{
		serviceName:   serviceName,
		meterProvider: provider,
		traceProvider: tp,
		meter:         meter,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		runCounter:    runCounter,
		runDuration:   runDuration,
		verdictScore:  verdictScore,
	}
}

// Tracer returns a tracer for this service, falling back to the global
// provider on a zero value.
func (o *Observability) Tracer() trace.Tracer {
	if o.traceProvider != nil {
		return o.traceProvider.Tracer(o.serviceName)
	}
	return otel.Tracer(o.serviceName)
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("taskType", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("taskType", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) ObserveVerdict(ctx context.Context, v pipeline.Verdict) {
	if o.verdictScore != nil {
		o.verdictScore.Record(ctx, int64(v.Score), otelmetric.WithAttributes(
			attribute.String("evaluator", v.EvaluatorID),
			attribute.String("decision", string(v.Decision)),
		))
	}
}

func (o *Observability) ObserveRun(ctx context.Context, r pipeline.Result) {
	attrs := otelmetric.WithAttributes(attribute.String("status", string(r.Status)))
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(r.Duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.traceProvider != nil {
		o.traceProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
}
