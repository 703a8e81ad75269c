package pipeline

import (
	"strings"
	"time"
)

// Application is the loan request as submitted. Evaluators receive it by
// value, so a run works on a frozen snapshot.
type Application struct {
	ID           string `json:"applicationId" yaml:"applicationId"`
	CustomerName string `json:"customerName" yaml:"customerName"`
	Mobile       string `json:"mobile" yaml:"mobile"`
	PAN          string `json:"pan" yaml:"pan"`
	Aadhaar      string `json:"aadhaar" yaml:"aadhaar"`
	LoanAmount   int64  `json:"loanAmount" yaml:"loanAmount"`
	Tenure       int    `json:"tenure" yaml:"tenure"`
	Income       int64  `json:"income" yaml:"income"`
}

// Terms returns the approved terms used for document generation.
func (a Application) Terms() Terms {
	return Terms{
		CustomerName:  a.CustomerName,
		PAN:           strings.ToUpper(a.PAN),
		LoanAmount:    a.LoanAmount,
		Tenure:        a.Tenure,
		Income:        a.Income,
		AnnualRatePct: DefaultAnnualRate,
	}
}

// EvaluationContext accumulates the verdicts of one run. It is owned by the
// orchestrator for the lifetime of that run.
type EvaluationContext struct {
	application Application
	verdicts    []Verdict
	status      RunStatus
	startedAt   time.Time
}

func NewEvaluationContext(app Application) *EvaluationContext {
	return &EvaluationContext{
		application: app,
		status:      StatusProcessing,
		startedAt:   time.Now(),
	}
}

func (c *EvaluationContext) Application() Application {
	return c.application
}

// Verdicts returns a copy of the log in evaluation order.
func (c *EvaluationContext) Verdicts() []Verdict {
	out := make([]Verdict, len(c.verdicts))
	copy(out, c.verdicts)
	return out
}

func (c *EvaluationContext) Status() RunStatus {
	return c.status
}

func (c *EvaluationContext) append(v Verdict) {
	c.verdicts = append(c.verdicts, v)
}

func (c *EvaluationContext) transition(s RunStatus) {
	if c.status.IsTerminal() {
		return
	}
	c.status = s
}

// Result is the terminal snapshot handed back to the caller.
type Result struct {
	ApplicationID string        `json:"applicationId"`
	Status        RunStatus     `json:"status"`
	FinalDecision Decision      `json:"finalDecision,omitempty"`
	Verdicts      []Verdict     `json:"verdicts"`
	Document      *DocumentRef  `json:"document,omitempty"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Terms are the figures a sanction letter is generated from.
type Terms struct {
	CustomerName  string  `json:"customerName"`
	PAN           string  `json:"pan"`
	LoanAmount    int64   `json:"loanAmount"`
	Tenure        int     `json:"tenure"`
	Income        int64   `json:"income"`
	AnnualRatePct float64 `json:"annualRatePct"`
	CreditScore   int     `json:"creditScore,omitempty"`
}

type DocumentRef struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
}

// fail forces the run into FAIL, including from an otherwise approved state.
func (c *EvaluationContext) fail() {
	c.status = StatusFail
}
