package evaluators

import (
	"context"
	"fmt"

	"loan-workers/internal/pipeline"
)

const (
	salesConfidence = 95
	maxLoanAmount   = 50000000
)

// Sales checks completeness and basic proportions of the request.
type Sales struct {
	identity
}

func NewSales() *Sales {
	return &Sales{identity{SalesID, "Sales Validator", "sales_validation"}}
}

func (s *Sales) Evaluate(_ context.Context, app pipeline.Application, _ []pipeline.Verdict) pipeline.Verdict {
	score := 100
	var issues []string
	detail := map[string]interface{}{}

	if app.Income > 0 {
		ratio := float64(app.LoanAmount) / float64(app.Income*12)
		detail["loan_to_income_ratio"] = pipeline.Round2(ratio)
		switch {
		case ratio > 5:
			score -= 30
			issues = append(issues, fmt.Sprintf("Loan amount is %.1fx annual income (recommended max 5x)", ratio))
		case ratio > 4:
			score -= 15
			issues = append(issues, fmt.Sprintf("Loan amount is %.1fx annual income (slightly high)", ratio))
		}
	} else {
		score -= 40
		issues = append(issues, "Income information not provided")
	}

	detail["tenure_months"] = app.Tenure
	switch {
	case app.Tenure < pipeline.MinTenure:
		score -= 25
		issues = append(issues, "Tenure too short (minimum 6 months)")
	case app.Tenure > pipeline.MaxTenure:
		score -= 15
		issues = append(issues, "Tenure exceeds 30 years maximum")
	}

	switch {
	case app.LoanAmount < pipeline.MinLoanAmount:
		score -= 30
		issues = append(issues, fmt.Sprintf("Loan amount Rs.%s below minimum Rs.10,000", pipeline.FormatAmount(app.LoanAmount)))
	case app.LoanAmount > maxLoanAmount:
		score -= 20
		issues = append(issues, fmt.Sprintf("Loan amount Rs.%s exceeds Rs.5 Crore limit", pipeline.FormatAmount(app.LoanAmount)))
	}
	detail["loan_amount"] = app.LoanAmount

	return s.verdict(score, salesConfidence, issues, "Application validated successfully", detail)
}
