package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
)

const (
	AggregatorID          = "AgentZeta"
	aggregatorDisplayName = "Sanction Authority"
	aggregatorKind        = "sanction_decision"
	aggregatorConfidence  = 95

	DefaultWeight = 0.10
)

// WeightTable maps evaluator ids to their share of the weighted score.
type WeightTable map[string]float64

// DefaultWeights reflects the relative importance of each component check.
func DefaultWeights() WeightTable {
	return WeightTable{
		"AgentAlpha":   0.15,
		"AgentBeta":    0.20,
		"AgentGamma":   0.25,
		"AgentDelta":   0.15,
		"AgentEpsilon": 0.25,
	}
}

// Weight returns the configured weight for id, or DefaultWeight.
func (w WeightTable) Weight(id string) float64 {
	if weight, ok := w[id]; ok {
		return weight
	}
	return DefaultWeight
}

// WeightedScore normalises over the weights of the verdicts present, so a
// partial list is scored on its own terms.
func (w WeightTable) WeightedScore(verdicts []Verdict) float64 {
	var sum, total float64
	for _, v := range verdicts {
		weight := w.Weight(v.EvaluatorID)
		sum += float64(v.Score) * weight
		total += weight
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// Aggregator turns the component verdicts into the binding sanction verdict.
type Aggregator struct {
	weights WeightTable
}

// NewAggregator returns an aggregator using weights; nil selects DefaultWeights.
// Entries in weights override the defaults individually. Keys matching a
// default id case-insensitively replace that id, since config loaders
// lowercase map keys.
func NewAggregator(weights WeightTable) *Aggregator {
	table := DefaultWeights()
	for id, weight := range weights {
		table[canonicalID(table, id)] = weight
	}
	return &Aggregator{weights: table}
}

func canonicalID(table WeightTable, id string) string {
	for known := range table {
		if strings.EqualFold(known, id) {
			return known
		}
	}
	return id
}

func (a *Aggregator) ID() string          { return AggregatorID }
func (a *Aggregator) DisplayName() string { return aggregatorDisplayName }
func (a *Aggregator) Kind() string        { return aggregatorKind }

func (a *Aggregator) Weights() WeightTable {
	out := make(WeightTable, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

func (a *Aggregator) Evaluate(_ context.Context, _ Application, prior []Verdict) Verdict {
	var average float64
	if len(prior) > 0 {
		var total int
		for _, v := range prior {
			total += v.Score
		}
		average = float64(total) / float64(len(prior))
	}
	weighted := a.weights.WeightedScore(prior)

	var rejections, reviews []Verdict
	approvals := 0
	breakdown := make([]map[string]interface{}, 0, len(prior))
	for _, v := range prior {
		switch v.Decision {
		case DecisionReject:
			rejections = append(rejections, v)
		case DecisionReview:
			reviews = append(reviews, v)
		case DecisionApprove:
			approvals++
		}
		breakdown = append(breakdown, map[string]interface{}{
			"agent":        v.EvaluatorID,
			"display_name": v.DisplayName,
			"score":        v.Score,
			"decision":     string(v.Decision),
		})
	}

	var (
		decision    Decision
		explanation string
		score       = int(weighted)
	)
	switch {
	case len(rejections) > 0:
		decision = DecisionReject
		explanation = "Rejected by: " + displayNames(rejections)
		score = rejections[0].Score
		for _, v := range rejections[1:] {
			score = minInt(score, v.Score)
		}
	case len(reviews) >= 2:
		decision = DecisionReview
		explanation = "Manual review required. Flagged by: " + displayNames(reviews)
	case len(reviews) == 1 && weighted < ApproveThreshold:
		decision = DecisionReview
		explanation = fmt.Sprintf("Borderline case with score %.0f. Manual review recommended.", weighted)
	case weighted >= ApproveThreshold:
		decision = DecisionApprove
		explanation = fmt.Sprintf("All checks passed. Final score: %.0f/100. Loan approved.", weighted)
	default:
		decision = DecisionReview
		explanation = fmt.Sprintf("Score %.0f below threshold. Manual review required.", weighted)
	}

	confidence := 0
	if len(prior) > 0 {
		confidence = clamp(minInt(aggregatorConfidence, int(math.Round(weighted))), 0, 100)
	}

	return Verdict{
		EvaluatorID: AggregatorID,
		DisplayName: aggregatorDisplayName,
		Kind:        aggregatorKind,
		Score:       ClampScore(score),
		Decision:    decision,
		Confidence:  confidence,
		Explanation: explanation,
		Detail: map[string]interface{}{
			"average_score":   Round1(average),
			"weighted_score":  Round1(weighted),
			"total_agents":    len(prior),
			"rejections":      len(rejections),
			"reviews":         len(reviews),
			"approvals":       approvals,
			"agent_breakdown": breakdown,
		},
	}
}

func displayNames(verdicts []Verdict) string {
	names := make([]string, len(verdicts))
	for i, v := range verdicts {
		names[i] = v.DisplayName
	}
	return strings.Join(names, ", ")
}
