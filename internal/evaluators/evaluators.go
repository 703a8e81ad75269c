// Package evaluators holds the component checks of the decision pipeline.
package evaluators

import (
	"regexp"
	"strings"

	"loan-workers/internal/pipeline"
)

const (
	SalesID  = "AgentAlpha"
	KYCID    = "AgentBeta"
	CreditID = "AgentGamma"
	IncomeID = "AgentDelta"
	FraudID  = "AgentEpsilon"
)

type identity struct {
	id, name, kind string
}

func (i identity) ID() string          { return i.id }
func (i identity) DisplayName() string { return i.name }
func (i identity) Kind() string        { return i.kind }

func (i identity) verdict(score, confidenceCap int, issues []string, fallback string, detail map[string]interface{}) pipeline.Verdict {
	explanation := fallback
	if len(issues) > 0 {
		explanation = strings.Join(issues, "; ")
	}
	return pipeline.NewVerdict(i.id, i.name, i.kind, score, confidenceCap, explanation, detail)
}

var separators = regexp.MustCompile(`[\s-]`)

func stripSeparators(s string) string {
	return separators.ReplaceAllString(s, "")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Default returns the component evaluators in pipeline order. rnd feeds the
// stochastic credit, income and fraud checks.
func Default(rnd pipeline.Random) []pipeline.Evaluator {
	return []pipeline.Evaluator{
		NewSales(),
		NewKYC(),
		NewCredit(rnd),
		NewIncome(rnd),
		NewFraud(rnd),
	}
}
