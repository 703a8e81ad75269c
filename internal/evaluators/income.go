package evaluators

import (
	"context"
	"fmt"

	"loan-workers/internal/pipeline"
)

const incomeConfidence = 85

type Income struct {
	identity
	rnd pipeline.Random
}

func NewIncome(rnd pipeline.Random) *Income {
	return &Income{identity: identity{IncomeID, "Income Analyzer", "income_analysis"}, rnd: rnd}
}

func (i *Income) Evaluate(_ context.Context, app pipeline.Application, _ []pipeline.Verdict) pipeline.Verdict {
	score := 100
	var issues []string
	income := app.Income
	detail := map[string]interface{}{
		"declared_income": income,
		"currency":        "INR",
	}

	switch {
	case income <= 0:
		score -= 50
		issues = append(issues, "No income information provided")
	case income < 15000:
		score -= 40
		issues = append(issues, fmt.Sprintf("Income Rs.%s/month below minimum Rs.15,000", pipeline.FormatAmount(income)))
	case income < 25000:
		score -= 20
		issues = append(issues, fmt.Sprintf("Income Rs.%s/month is on lower side", pipeline.FormatAmount(income)))
	case income < 35000:
		score -= 10
		issues = append(issues, fmt.Sprintf("Moderate income level: Rs.%s/month", pipeline.FormatAmount(income)))
	default:
		if income >= 50000 {
			detail["income_category"] = "Good"
		} else {
			detail["income_category"] = "Adequate"
		}
	}

	annual := income * 12
	maxLoan := annual * 5
	detail["annual_income"] = annual
	detail["max_loan_recommended"] = maxLoan
	if app.LoanAmount > maxLoan {
		score -= 15
		issues = append(issues, fmt.Sprintf("Loan exceeds recommended limit by Rs.%s", pipeline.FormatAmount(app.LoanAmount-maxLoan)))
	}

	stability := pipeline.IntBetween(i.rnd, 70, 100)
	detail["income_stability_score"] = stability
	if stability < 75 {
		score -= 15
		issues = append(issues, "Income stability appears lower than preferred")
	}

	return i.verdict(score, incomeConfidence, issues, fmt.Sprintf("Income verified: Rs.%s/month", pipeline.FormatAmount(income)), detail)
}
