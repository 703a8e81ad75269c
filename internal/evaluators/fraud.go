package evaluators

import (
	"context"

	"loan-workers/internal/pipeline"
)

const (
	fraudConfidence    = 92
	blacklistThreshold = 0.98
	blacklistScore     = 10
)

// Fraud looks for risk signals. The score starts clean and only goes down;
// a blacklist hit overrides everything else.
type Fraud struct {
	identity
	rnd pipeline.Random
}

func NewFraud(rnd pipeline.Random) *Fraud {
	return &Fraud{identity: identity{FraudID, "Fraud Detector", "fraud_detection"}, rnd: rnd}
}

func (f *Fraud) Evaluate(_ context.Context, app pipeline.Application, _ []pipeline.Verdict) pipeline.Verdict {
	score := 100
	var flags []string
	detail := map[string]interface{}{}

	roundIncome := app.Income > 0 && app.Income%10000 == 0
	detail["round_income_flag"] = roundIncome
	if roundIncome {
		score -= 5
	}

	if app.Income > 0 && app.LoanAmount > app.Income*100 {
		score -= 30
		flags = append(flags, "Unusual loan-to-income ratio detected")
	}

	velocity := f.rnd.Float64()
	detail["velocity_score"] = int(velocity * 100)
	switch {
	case velocity > 0.95:
		score -= 40
		flags = append(flags, "Multiple applications detected from same source")
	case velocity > 0.85:
		score -= 20
		flags = append(flags, "Elevated application velocity")
	}

	docScore := pipeline.IntBetween(f.rnd, 70, 100)
	detail["document_score"] = docScore
	if docScore < 75 {
		score -= 25
		flags = append(flags, "Document anomalies detected - manual review needed")
	}

	hit := f.rnd.Float64() > blacklistThreshold
	detail["blacklist_clear"] = !hit
	if hit {
		score = blacklistScore
		flags = append(flags, "Match found in fraud database - HIGH RISK")
	}

	detail["fraud_risk_score"] = 100 - score

	return f.verdict(score, fraudConfidence, flags, "No fraud indicators detected", detail)
}
