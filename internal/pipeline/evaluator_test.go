package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithTimeout_PassesThroughFastVerdict(t *testing.T) {
	ev := &stubEvaluator{id: "AgentAlpha", score: 88}

	v := WithTimeout(ev, time.Second).Evaluate(context.Background(), Application{}, nil)

	assert.Equal(t, 88, v.Score)
	assert.Equal(t, DecisionApprove, v.Decision)
}

func TestWithTimeout_DegradesSlowEvaluator(t *testing.T) {
	ev := &stubEvaluator{id: "AgentBureau", score: 90, sleep: time.Second}
	wrapped := WithTimeout(ev, 10*time.Millisecond)

	start := time.Now()
	v := wrapped.Evaluate(context.Background(), Application{}, nil)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "AgentBureau", v.EvaluatorID)
	assert.Equal(t, 50, v.Score)
	assert.Equal(t, 10, v.Confidence)
	assert.Equal(t, DecisionReview, v.Decision)
	assert.Contains(t, v.Explanation, "timed out after 10ms")
	assert.Equal(t, wrapped.ID(), ev.ID())
}

func TestWithTimeout_RecoversPanic(t *testing.T) {
	ev := &stubEvaluator{id: "AgentBureau", panicWith: "boom"}

	v := WithTimeout(ev, time.Second).Evaluate(context.Background(), Application{}, nil)

	assert.Equal(t, DecisionReject, v.Decision)
	assert.Equal(t, "evaluator fault: boom", v.Explanation)
}

func TestSafeEvaluate_StampsDuration(t *testing.T) {
	ev := &stubEvaluator{id: "AgentAlpha", score: 90, sleep: 5 * time.Millisecond}

	v := safeEvaluate(context.Background(), ev, Application{}, nil)

	assert.GreaterOrEqual(t, v.Duration, 5*time.Millisecond)
}

func TestDegradedVerdict(t *testing.T) {
	v := DegradedVerdict(&stubEvaluator{id: "AgentBureau"}, "connection refused")

	assert.Equal(t, 50, v.Score)
	assert.Equal(t, DecisionReview, v.Decision)
	assert.Equal(t, 10, v.Confidence)
	assert.Equal(t, "connection refused", v.Detail["reason"])
}

// rawEvaluator returns its verdict untouched, the way a third-party
// evaluator might.
type rawEvaluator struct {
	id      string
	verdict Verdict
}

func (r *rawEvaluator) ID() string          { return r.id }
func (r *rawEvaluator) DisplayName() string { return r.id }
func (r *rawEvaluator) Kind() string        { return "raw" }

func (r *rawEvaluator) Evaluate(context.Context, Application, []Verdict) Verdict {
	return r.verdict
}

func TestSafeEvaluate_NormalisesComponentVerdict(t *testing.T) {
	tests := []struct {
		name         string
		in           Verdict
		wantScore    int
		wantDecision Decision
	}{
		{"above range", Verdict{Score: 150, Decision: DecisionApprove, Confidence: 120}, 100, DecisionApprove},
		{"below range", Verdict{Score: -20, Decision: DecisionApprove}, 0, DecisionReject},
		{"decision disagrees with score", Verdict{Score: 40, Decision: DecisionApprove}, 40, DecisionReject},
		{"review band", Verdict{Score: 65, Decision: DecisionReject}, 65, DecisionReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &rawEvaluator{id: "AgentExternal", verdict: tt.in}

			v := safeEvaluate(context.Background(), ev, Application{}, nil)

			assert.Equal(t, tt.wantScore, v.Score)
			assert.Equal(t, tt.wantDecision, v.Decision)
			assert.LessOrEqual(t, v.Confidence, 100)
			assert.Equal(t, "AgentExternal", v.EvaluatorID)
		})
	}
}

func TestSafeEvaluate_KeepsAggregatorDecision(t *testing.T) {
	ev := &rawEvaluator{id: AggregatorID, verdict: Verdict{
		EvaluatorID: AggregatorID,
		Score:       85,
		Decision:    DecisionReject,
	}}

	v := safeEvaluate(context.Background(), ev, Application{}, nil)

	assert.Equal(t, 85, v.Score)
	assert.Equal(t, DecisionReject, v.Decision)
}

func TestWithTimeout_ReportsCallerCancellation(t *testing.T) {
	ev := &stubEvaluator{id: "AgentBureau", score: 90, sleep: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := WithTimeout(ev, 500*time.Millisecond).Evaluate(ctx, Application{}, nil)

	assert.Equal(t, DecisionReview, v.Decision)
	assert.Equal(t, "cancelled by caller", v.Detail["reason"])
	assert.NotContains(t, v.Explanation, "timed out")
}

func TestWithTimeout_ReportsCallerDeadline(t *testing.T) {
	ev := &stubEvaluator{id: "AgentBureau", score: 90, sleep: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	v := WithTimeout(ev, 500*time.Millisecond).Evaluate(ctx, Application{}, nil)

	assert.Equal(t, "caller deadline exceeded", v.Detail["reason"])
}
