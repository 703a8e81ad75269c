package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Evaluator inspects a frozen application and returns one verdict. Only the
// aggregator reads prior verdicts. Implementations never fail: bad input
// lowers the score instead.
type Evaluator interface {
	ID() string
	DisplayName() string
	Kind() string
	Evaluate(ctx context.Context, app Application, prior []Verdict) Verdict
}

const (
	degradedScore      = ReviewThreshold
	degradedConfidence = 10
)

// DegradedVerdict is returned in place of a verdict that could not be
// produced in time. It lands in the REVIEW band with low confidence.
func DegradedVerdict(ev Evaluator, reason string) Verdict {
	return Verdict{
		EvaluatorID: ev.ID(),
		DisplayName: ev.DisplayName(),
		Kind:        ev.Kind(),
		Score:       degradedScore,
		Decision:    DecisionFromScore(degradedScore),
		Confidence:  degradedConfidence,
		Explanation: fmt.Sprintf("%s unavailable: %s. Manual review required", ev.DisplayName(), reason),
		Detail: map[string]interface{}{
			"degraded": true,
			"reason":   reason,
		},
	}
}

// FaultVerdict stands in for an evaluator that crashed.
func FaultVerdict(ev Evaluator, fault interface{}) Verdict {
	msg := fmt.Sprintf("%v", fault)
	return Verdict{
		EvaluatorID: ev.ID(),
		DisplayName: ev.DisplayName(),
		Kind:        ev.Kind(),
		Score:       0,
		Decision:    DecisionReject,
		Confidence:  0,
		Explanation: "evaluator fault: " + msg,
		Detail: map[string]interface{}{
			"fault": msg,
		},
	}
}

// safeEvaluate runs ev, converting a panic into a fault verdict and stamping
// identity and duration. Scores are clamped to [0,100]. Component decisions
// are recomputed from the thresholds; the aggregator's decision is kept.
func safeEvaluate(ctx context.Context, ev Evaluator, app Application, prior []Verdict) (v Verdict) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			v = FaultVerdict(ev, r)
		}
		if v.EvaluatorID == "" {
			v.EvaluatorID = ev.ID()
		}
		v.Score = ClampScore(v.Score)
		if ev.ID() != AggregatorID {
			v.Decision = DecisionFromScore(v.Score)
		}
		v.Confidence = clamp(v.Confidence, 0, 100)
		if v.Duration == 0 {
			v.Duration = time.Since(start)
		}
	}()
	return ev.Evaluate(ctx, app, prior)
}

type timeoutEvaluator struct {
	Evaluator
	timeout time.Duration
}

// WithTimeout bounds ev. When the deadline passes first, or the caller's
// context is cancelled, the run continues with a degraded verdict; the
// abandoned call sees a cancelled context.
func WithTimeout(ev Evaluator, timeout time.Duration) Evaluator {
	return &timeoutEvaluator{Evaluator: ev, timeout: timeout}
}

func (t *timeoutEvaluator) Evaluate(ctx context.Context, app Application, prior []Verdict) Verdict {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan Verdict, 1)
	go func() {
		done <- safeEvaluate(ctx, t.Evaluator, app, prior)
	}()

	select {
	case v := <-done:
		return v
	case <-ctx.Done():
		return DegradedVerdict(t.Evaluator, t.reason(parent))
	}
}

// reason tells our own deadline apart from the caller giving up.
func (t *timeoutEvaluator) reason(parent context.Context) string {
	switch err := parent.Err(); {
	case errors.Is(err, context.Canceled):
		return "cancelled by caller"
	case errors.Is(err, context.DeadlineExceeded):
		return "caller deadline exceeded"
	default:
		return fmt.Sprintf("timed out after %s", t.timeout)
	}
}
