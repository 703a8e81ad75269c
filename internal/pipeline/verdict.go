package pipeline

import (
	"math"
	"time"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
	DecisionReview  Decision = "REVIEW"
)

const (
	ApproveThreshold = 70
	ReviewThreshold  = 50
)

type RunStatus string

const (
	StatusCreated      RunStatus = "CREATED"
	StatusProcessing   RunStatus = "PROCESSING"
	StatusSuccess      RunStatus = "SUCCESS"
	StatusFail         RunStatus = "FAIL"
	StatusSanctioned   RunStatus = "SANCTIONED"
	StatusRejected     RunStatus = "REJECTED"
	StatusManualReview RunStatus = "MANUAL_REVIEW"
)

// AllStatuses lists every status an application record may hold.
func AllStatuses() []RunStatus {
	return []RunStatus{
		StatusCreated, StatusProcessing, StatusSuccess, StatusFail,
		StatusSanctioned, StatusRejected, StatusManualReview,
	}
}

// ParseStatus returns the status named s and whether it is known.
func ParseStatus(s string) (RunStatus, bool) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition can happen from s.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusFail, StatusSanctioned, StatusRejected, StatusManualReview:
		return true
	default:
		return false
	}
}

// Verdict is the output of a single evaluator.
type Verdict struct {
	EvaluatorID string                 `json:"evaluatorId"`
	DisplayName string                 `json:"displayName"`
	Kind        string                 `json:"kind"`
	Score       int                    `json:"score"`
	Decision    Decision               `json:"decision"`
	Confidence  int                    `json:"confidence"`
	Explanation string                 `json:"explanation"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// DecisionFromScore applies the fixed component thresholds.
func DecisionFromScore(score int) Decision {
	switch {
	case score >= ApproveThreshold:
		return DecisionApprove
	case score >= ReviewThreshold:
		return DecisionReview
	default:
		return DecisionReject
	}
}

// StatusFromDecision maps the aggregator decision to a terminal run status.
func StatusFromDecision(d Decision) RunStatus {
	switch d {
	case DecisionApprove:
		return StatusSanctioned
	case DecisionReject:
		return StatusRejected
	case DecisionReview:
		return StatusManualReview
	default:
		return StatusFail
	}
}

func ClampScore(score int) int {
	return clamp(score, 0, 100)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// NewVerdict finalises a penalty-scored verdict: the score is clamped, the
// decision derived from it and the confidence capped.
func NewVerdict(id, displayName, kind string, rawScore, confidenceCap int, explanation string, detail map[string]interface{}) Verdict {
	score := ClampScore(rawScore)
	return Verdict{
		EvaluatorID: id,
		DisplayName: displayName,
		Kind:        kind,
		Score:       score,
		Decision:    DecisionFromScore(score),
		Confidence:  clamp(minInt(confidenceCap, score), 0, 100),
		Explanation: explanation,
		Detail:      detail,
	}
}

// Round2 rounds half away from zero to two decimals for detail values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// EMI returns the monthly installment under a reducing-balance schedule.
// It falls back to straight division when the rate is zero or the tenure is
// not positive.
func EMI(principal float64, months int, annualRatePct float64) float64 {
	r := annualRatePct / 12 / 100
	if r == 0 || months <= 0 {
		n := months
		if n < 1 {
			n = 1
		}
		return principal / float64(n)
	}
	growth := math.Pow(1+r, float64(months))
	return principal * r * growth / (growth - 1)
}

// DefaultAnnualRate is the nominal annual interest rate, in percent.
const DefaultAnnualRate = 12.0
