package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"loan-workers/internal/common/logger"
)

// Persister stores a terminal result. Calls are fire-and-forget from the
// pipeline's point of view.
type Persister interface {
	Save(ctx context.Context, applicationID string, result Result) error
}

// DocumentGenerator renders the sanction letter for an approved run.
type DocumentGenerator interface {
	Generate(ctx context.Context, applicationID string, terms Terms) (DocumentRef, error)
}

// Observer receives verdicts and results as they are produced.
type Observer interface {
	ObserveVerdict(ctx context.Context, v Verdict)
	ObserveRun(ctx context.Context, r Result)
}

type nopObserver struct{}

func (nopObserver) ObserveVerdict(context.Context, Verdict) {}
func (nopObserver) ObserveRun(context.Context, Result)      {}

// Observers fans every call out to each member in order.
type Observers []Observer

func (os Observers) ObserveVerdict(ctx context.Context, v Verdict) {
	for _, o := range os {
		o.ObserveVerdict(ctx, v)
	}
}

func (os Observers) ObserveRun(ctx context.Context, r Result) {
	for _, o := range os {
		o.ObserveRun(ctx, r)
	}
}

const defaultPersistTimeout = 10 * time.Second

// Orchestrator runs the component evaluators in order, stopping at the first
// REJECT, and lets the aggregator decide when every component passed.
type Orchestrator struct {
	evaluators     []Evaluator
	aggregator     Evaluator
	persister      Persister
	documents      DocumentGenerator
	observer       Observer
	tracer         trace.Tracer
	logger         logger.Logger
	persistTimeout time.Duration

	pending sync.WaitGroup
}

type Option func(*Orchestrator)

func WithPersister(p Persister) Option {
	return func(o *Orchestrator) { o.persister = p }
}

func WithDocuments(d DocumentGenerator) Option {
	return func(o *Orchestrator) { o.documents = d }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithPersistTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.persistTimeout = d }
}

// NewOrchestrator builds a pipeline over evaluators followed by aggregator.
// A nil aggregator selects the default weight table.
func NewOrchestrator(evaluators []Evaluator, aggregator Evaluator, opts ...Option) *Orchestrator {
	if aggregator == nil {
		aggregator = NewAggregator(nil)
	}
	o := &Orchestrator{
		evaluators:     append([]Evaluator(nil), evaluators...),
		aggregator:     aggregator,
		observer:       nopObserver{},
		tracer:         noop.NewTracerProvider().Tracer("loan-workers/pipeline"),
		logger:         logger.NewNoOpLogger(),
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithFields(map[string]interface{}{"component": "orchestrator"})
	return o
}

// Stages returns the evaluators in run order, aggregator last.
func (o *Orchestrator) Stages() []Evaluator {
	out := make([]Evaluator, 0, len(o.evaluators)+1)
	out = append(out, o.evaluators...)
	return append(out, o.aggregator)
}

type runState struct {
	ec   *EvaluationContext
	emit func(Event)
}

func (o *Orchestrator) stages() []stage[*runState] {
	out := make([]stage[*runState], 0, len(o.evaluators)+1)
	for _, ev := range o.evaluators {
		ev := ev
		out = append(out, stage[*runState]{
			name: ev.ID(),
			run: func(ctx context.Context, s *runState) *runState {
				v := o.evaluate(ctx, ev, s, nil)
				if v.Decision == DecisionReject {
					s.ec.transition(StatusFail)
				}
				return s
			},
		})
	}
	out = append(out, stage[*runState]{
		name: o.aggregator.ID(),
		run: func(ctx context.Context, s *runState) *runState {
			v := o.evaluate(ctx, o.aggregator, s, s.ec.Verdicts())
			s.ec.transition(StatusFromDecision(v.Decision))
			return s
		},
	})
	return out
}

func (o *Orchestrator) evaluate(ctx context.Context, ev Evaluator, s *runState, prior []Verdict) Verdict {
	s.emit(Event{Kind: EventStart, EvaluatorID: ev.ID(), DisplayName: ev.DisplayName()})

	ctx, span := o.tracer.Start(ctx, "evaluate "+ev.ID(), trace.WithAttributes(
		attribute.String("application.id", s.ec.Application().ID),
		attribute.String("evaluator.kind", ev.Kind()),
	))
	v := safeEvaluate(ctx, ev, s.ec.Application(), prior)
	span.SetAttributes(
		attribute.Int("verdict.score", v.Score),
		attribute.String("verdict.decision", string(v.Decision)),
	)
	span.End()

	s.ec.append(v)
	o.observer.ObserveVerdict(ctx, v)
	o.logger.Debug("evaluator finished", map[string]interface{}{
		"applicationId": s.ec.Application().ID,
		"evaluatorId":   v.EvaluatorID,
		"decision":      v.Decision,
		"score":         v.Score,
		"durationMs":    v.Duration.Milliseconds(),
	})

	vc := v
	s.emit(Event{Kind: EventVerdict, EvaluatorID: v.EvaluatorID, DisplayName: v.DisplayName, Verdict: &vc})
	return v
}

// Run evaluates app to a terminal result. It never returns a malformed
// result: evaluator faults and collaborator failures surface as FAIL.
func (o *Orchestrator) Run(ctx context.Context, app Application) Result {
	return o.run(ctx, app, func(Event) {})
}

// RunStreaming emits a start and a verdict event per evaluator, then one
// complete event carrying the result. The channel is buffered for the whole
// run so a slow reader never stalls evaluation.
func (o *Orchestrator) RunStreaming(ctx context.Context, app Application) <-chan Event {
	events := make(chan Event, 2*(len(o.evaluators)+1)+1)
	go func() {
		defer close(events)
		res := o.run(ctx, app, func(e Event) { events <- e })
		events <- Event{Kind: EventComplete, EvaluatorID: AggregatorID, Result: &res}
	}()
	return events
}

// RunBatch evaluates independent applications concurrently, at most limit
// at a time. Results keep the order of apps.
func (o *Orchestrator) RunBatch(ctx context.Context, apps []Application, limit int) ([]Result, error) {
	results := make([]Result, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, app := range apps {
		i, app := i, app
		g.Go(func() error {
			results[i] = o.Run(gctx, app)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func (o *Orchestrator) run(ctx context.Context, app Application, emit func(Event)) Result {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	ec := NewEvaluationContext(app)
	log := o.logger.WithFields(map[string]interface{}{"applicationId": app.ID})
	log.Info("evaluation started", nil)

	state := &runState{ec: ec, emit: emit}
	_, err := sequence(ctx, o.stages(), state, func(s *runState) bool {
		return s.ec.Status().IsTerminal()
	})

	res := Result{ApplicationID: app.ID}
	if err != nil && !ec.Status().IsTerminal() {
		ec.fail()
		res.ErrorMessage = "evaluation cancelled: " + err.Error()
	}

	verdicts := ec.Verdicts()
	if n := len(verdicts); n > 0 {
		res.FinalDecision = verdicts[n-1].Decision
	}

	if ec.Status() == StatusSanctioned && o.documents != nil {
		terms := app.Terms()
		terms.CreditScore = creditScore(verdicts)
		doc, genErr := o.documents.Generate(ctx, app.ID, terms)
		if genErr != nil {
			ec.fail()
			res.ErrorMessage = fmt.Sprintf("Sanction letter generation failed: %v", genErr)
			log.WithError(genErr).Error("document generation failed", nil)
		} else {
			res.Document = &doc
		}
	}

	res.Status = ec.Status()
	res.Verdicts = verdicts
	res.Duration = time.Since(ec.startedAt)

	o.observer.ObserveRun(ctx, res)
	log.Info("evaluation finished", map[string]interface{}{
		"status":     res.Status,
		"verdicts":   len(res.Verdicts),
		"durationMs": res.Duration.Milliseconds(),
	})

	o.persist(ctx, res)
	return res
}

func (o *Orchestrator) persist(ctx context.Context, res Result) {
	if o.persister == nil {
		return
	}
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.persistTimeout)
		defer cancel()
		if err := o.persister.Save(saveCtx, res.ApplicationID, res); err != nil {
			o.logger.WithError(err).Warn("failed to persist evaluation result", map[string]interface{}{
				"applicationId": res.ApplicationID,
			})
		}
	}()
}

// Flush waits for in-flight persistence writes or for ctx to end.
func (o *Orchestrator) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func creditScore(verdicts []Verdict) int {
	for _, v := range verdicts {
		if v.Kind != "credit_risk" {
			continue
		}
		switch s := v.Detail["credit_score"].(type) {
		case int:
			return s
		case float64:
			return int(s)
		}
	}
	return 0
}
