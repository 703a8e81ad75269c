package evaluators

import (
	"context"
	"fmt"

	"loan-workers/internal/pipeline"
)

const (
	creditConfidence = 90
	baseCreditScore  = 700
	minCreditProxy   = 300
	maxCreditProxy   = 900
	creditVariance   = 50
)

// Credit estimates a bureau-style score from income and scores the EMI
// burden of the requested loan.
type Credit struct {
	identity
	rnd pipeline.Random
}

func NewCredit(rnd pipeline.Random) *Credit {
	return &Credit{identity: identity{CreditID, "Credit Analyst", "credit_risk"}, rnd: rnd}
}

// creditProxy draws exactly one random integer.
func (c *Credit) creditProxy(income int64) int {
	base := baseCreditScore
	switch {
	case income >= 100000:
		base += 50
	case income >= 50000:
		base += 30
	case income >= 25000:
		base += 10
	case income < 15000:
		base -= 50
	}
	variance := pipeline.IntBetween(c.rnd, -creditVariance, creditVariance)
	score := base + variance
	if score < minCreditProxy {
		return minCreditProxy
	}
	if score > maxCreditProxy {
		return maxCreditProxy
	}
	return score
}

func (c *Credit) Evaluate(_ context.Context, app pipeline.Application, _ []pipeline.Verdict) pipeline.Verdict {
	score := 100
	var issues []string
	detail := map[string]interface{}{}

	creditScore := c.creditProxy(app.Income)
	detail["credit_score"] = creditScore
	switch {
	case creditScore < 550:
		score -= 50
		issues = append(issues, fmt.Sprintf("Very low credit score: %d (min 550 recommended)", creditScore))
	case creditScore < 650:
		score -= 30
		issues = append(issues, fmt.Sprintf("Low credit score: %d (650+ preferred)", creditScore))
	case creditScore < 700:
		score -= 15
		issues = append(issues, fmt.Sprintf("Below average credit score: %d", creditScore))
	default:
		if creditScore >= 750 {
			detail["credit_rating"] = "Good"
		} else {
			detail["credit_rating"] = "Fair"
		}
	}

	emi := pipeline.EMI(float64(app.LoanAmount), app.Tenure, pipeline.DefaultAnnualRate)
	emiRatio := 100.0
	if app.Income > 0 {
		emiRatio = emi / float64(app.Income) * 100
	}
	detail["estimated_emi"] = int64(emi)
	detail["emi_to_income_ratio"] = pipeline.Round1(emiRatio)

	switch {
	case emiRatio > 60:
		score -= 35
		issues = append(issues, fmt.Sprintf("EMI burden too high: %.1f%% of income (max 60%%)", emiRatio))
	case emiRatio > 50:
		score -= 20
		issues = append(issues, fmt.Sprintf("EMI burden elevated: %.1f%% of income", emiRatio))
	case emiRatio > 40:
		score -= 10
		issues = append(issues, fmt.Sprintf("Moderate EMI burden: %.1f%% of income", emiRatio))
	}
	// Only the requested loan is known, so FOIR equals the EMI ratio.
	detail["foir"] = pipeline.Round1(emiRatio)

	return c.verdict(score, creditConfidence, issues, fmt.Sprintf("Credit assessment passed. Score: %d", creditScore), detail)
}
