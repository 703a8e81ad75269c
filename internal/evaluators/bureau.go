package evaluators

import (
	"context"
	"fmt"

	"loan-workers/internal/pipeline"
)

const (
	BureauID         = "AgentBureau"
	bureauConfidence = 90
)

// Bureau scores the applicant from an external credit bureau. It is meant
// to be wrapped with pipeline.WithTimeout; lookup failures degrade instead of
// rejecting.
type Bureau struct {
	identity
	bureau pipeline.CreditBureau
}

func NewBureau(bureau pipeline.CreditBureau) *Bureau {
	return &Bureau{identity: identity{BureauID, "Bureau Check", "credit_bureau"}, bureau: bureau}
}

func bureauScore(creditScore int) int {
	switch {
	case creditScore >= 750:
		return 100
	case creditScore >= 700:
		return 85
	case creditScore >= 650:
		return 70
	case creditScore >= pipeline.MinCreditScore:
		return 55
	default:
		return 30
	}
}

func (b *Bureau) Evaluate(ctx context.Context, app pipeline.Application, _ []pipeline.Verdict) pipeline.Verdict {
	report, err := b.bureau.CreditScore(ctx, app.PAN)
	if err != nil {
		return pipeline.DegradedVerdict(b, err.Error())
	}

	var issues []string
	if report.Score < pipeline.MinCreditScore {
		issues = append(issues, fmt.Sprintf("Bureau score %d below minimum %d", report.Score, pipeline.MinCreditScore))
	}
	detail := map[string]interface{}{
		"bureau_score":  report.Score,
		"bureau_rating": report.Rating,
	}
	return b.verdict(bureauScore(report.Score), bureauConfidence, issues,
		fmt.Sprintf("Bureau score %d (%s)", report.Score, report.Rating), detail)
}
