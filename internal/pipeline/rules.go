package pipeline

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// UnderwritingFacts are the figures the underwriting rules are evaluated
// against. They are exposed to expressions as double variables of the same
// snake_case names.
type UnderwritingFacts struct {
	CreditScore    int
	MinCreditScore int
	EMI            float64
	Income         int64
	LoanAmount     int64
}

func (f UnderwritingFacts) activation() map[string]interface{} {
	return map[string]interface{}{
		"credit_score":     float64(f.CreditScore),
		"min_credit_score": float64(f.MinCreditScore),
		"emi":              f.EMI,
		"income":           float64(f.Income),
		"loan_amount":      float64(f.LoanAmount),
	}
}

// Rule is a named boolean expression. Explain renders the applicant-facing
// reason when the expression evaluates to false.
type Rule struct {
	Name       string
	Expression string
	Explain    func(UnderwritingFacts) string
}

type compiledRule struct {
	Rule
	program cel.Program
}

// RuleSet holds compiled underwriting rules.
type RuleSet struct {
	rules []compiledRule
}

// MinCreditScore is the lowest bureau score underwriting accepts.
const MinCreditScore = 600

// DefaultUnderwritingRules returns the credit score floor, the 50% EMI to
// income cap and the 50x income loan cap.
func DefaultUnderwritingRules() []Rule {
	return []Rule{
		{
			Name:       "credit_score",
			Expression: "credit_score >= min_credit_score",
			Explain: func(f UnderwritingFacts) string {
				return fmt.Sprintf("Your credit score of %d is below our minimum requirement of %d", f.CreditScore, f.MinCreditScore)
			},
		},
		{
			Name:       "dti",
			Expression: "emi <= income * 0.5",
			Explain: func(f UnderwritingFacts) string {
				return fmt.Sprintf("Based on your income, your maximum affordable EMI is ₹%s, but the requested loan would require ₹%s per month",
					FormatRupees(float64(f.Income)*0.5), FormatRupees(f.EMI))
			},
		},
		{
			Name:       "loan_cap",
			Expression: "loan_amount <= income * 50.0",
			Explain: func(f UnderwritingFacts) string {
				return fmt.Sprintf("Based on your income, you can borrow up to ₹%s. Consider reducing your loan amount or showing additional income",
					FormatAmount(f.Income*50))
			},
		},
	}
}

// NewRuleSet compiles rules once. Any compile error is returned with the
// offending rule's name.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("credit_score", cel.DoubleType),
		cel.Variable("min_credit_score", cel.DoubleType),
		cel.Variable("emi", cel.DoubleType),
		cel.Variable("income", cel.DoubleType),
		cel.Variable("loan_amount", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	set := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile error in rule %s: %w", r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s does not return bool", r.Name)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program error in rule %s: %w", r.Name, err)
		}
		set.rules = append(set.rules, compiledRule{Rule: r, program: prg})
	}
	return set, nil
}

// MustDefaultRuleSet compiles DefaultUnderwritingRules and panics on error.
func MustDefaultRuleSet() *RuleSet {
	set, err := NewRuleSet(DefaultUnderwritingRules())
	if err != nil {
		panic(err)
	}
	return set
}

// Violations evaluates every rule and returns the explanations of those that
// failed, in rule order.
func (s *RuleSet) Violations(facts UnderwritingFacts) ([]string, error) {
	activation := facts.activation()
	var out []string
	for _, r := range s.rules {
		val, _, err := r.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("eval error in rule %s: %w", r.Name, err)
		}
		ok, isBool := val.Value().(bool)
		if !isBool {
			return nil, fmt.Errorf("rule %s did not return bool", r.Name)
		}
		if !ok {
			if r.Explain != nil {
				out = append(out, r.Explain(facts))
			} else {
				out = append(out, fmt.Sprintf("Rule %s not satisfied", r.Name))
			}
		}
	}
	return out, nil
}
