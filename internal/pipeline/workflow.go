package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"loan-workers/internal/common/logger"
)

const (
	NodeSales        = "sales"
	NodeVerification = "verification"
	NodeUnderwriting = "underwriting"
	NodeSanction     = "sanction"
)

type StepOutcome string

const (
	StepSuccess StepOutcome = "SUCCESS"
	StepFail    StepOutcome = "FAIL"
)

// StepResult records what one workflow node decided.
type StepResult struct {
	Node    string                 `json:"node"`
	Result  StepOutcome            `json:"result"`
	Data    map[string]interface{} `json:"data"`
	Message string                 `json:"message"`
}

// WorkflowState is threaded through the workflow nodes. Status moves from
// PROCESSING through SUCCESS after each clean node to SANCTIONED, or to FAIL.
type WorkflowState struct {
	Application  Application   `json:"application"`
	Status       RunStatus     `json:"status"`
	CreditScore  int           `json:"creditScore"`
	Steps        []StepResult  `json:"steps"`
	Document     *DocumentRef  `json:"document,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Duration     time.Duration `json:"duration"`
}

func (s *WorkflowState) record(step StepResult, errs []string) {
	s.Steps = append(s.Steps, step)
	if step.Result == StepFail {
		s.Status = StatusFail
		if len(errs) > 0 {
			s.ErrorMessage = strings.Join(errs, "; ")
		}
		return
	}
	s.Status = StatusSuccess
}

// IdentityCheck is the outcome of verifying one identifier.
type IdentityCheck struct {
	Verified     bool   `json:"verified"`
	Masked       string `json:"masked,omitempty"`
	NameOnRecord string `json:"nameOnRecord,omitempty"`
	Message      string `json:"message"`
}

// IdentityVerifier checks identity documents against a registry.
type IdentityVerifier interface {
	VerifyPAN(ctx context.Context, pan string) (IdentityCheck, error)
	VerifyAadhaar(ctx context.Context, aadhaar string) (IdentityCheck, error)
	VerifyMobile(ctx context.Context, mobile string) (IdentityCheck, error)
}

// CreditReport is a bureau response.
type CreditReport struct {
	Score  int    `json:"creditScore"`
	Rating string `json:"rating"`
}

type CreditBureau interface {
	CreditScore(ctx context.Context, pan string) (CreditReport, error)
}

// CreditRating buckets a bureau score.
func CreditRating(score int) string {
	switch {
	case score >= 750:
		return "EXCELLENT"
	case score >= 700:
		return "GOOD"
	case score >= 650:
		return "FAIR"
	case score >= 600:
		return "POOR"
	default:
		return "VERY_POOR"
	}
}

var (
	panPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ValidPAN reports whether pan, uppercased, has the ABCDE1234F shape.
func ValidPAN(pan string) bool {
	return panPattern.MatchString(strings.ToUpper(pan))
}

func isDigits(s string, n int) bool {
	return len(s) == n && digitsPattern.MatchString(s)
}

const (
	MinLoanAmount = 10000
	MinTenure     = 6
	MaxTenure     = 360
)

// Workflow is the strict four node pipeline: any failing node stops the run
// with FAIL and only a clean pass reaches document generation.
type Workflow struct {
	verifier  IdentityVerifier
	bureau    CreditBureau
	rules     *RuleSet
	documents DocumentGenerator
	logger    logger.Logger
}

// NewWorkflow wires the workflow collaborators. A nil rule set selects the
// default underwriting rules.
func NewWorkflow(verifier IdentityVerifier, bureau CreditBureau, rules *RuleSet, documents DocumentGenerator, log logger.Logger) *Workflow {
	if rules == nil {
		rules = MustDefaultRuleSet()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Workflow{
		verifier:  verifier,
		bureau:    bureau,
		rules:     rules,
		documents: documents,
		logger:    log.WithFields(map[string]interface{}{"component": "workflow"}),
	}
}

func (w *Workflow) stages() []stage[*WorkflowState] {
	return []stage[*WorkflowState]{
		{name: NodeSales, run: w.validate},
		{name: NodeVerification, run: w.verify},
		{name: NodeUnderwriting, run: w.underwrite},
		{name: NodeSanction, run: w.sanction},
	}
}

// Run executes the workflow for app. The returned state is always terminal:
// SANCTIONED or FAIL.
func (w *Workflow) Run(ctx context.Context, app Application) WorkflowState {
	start := time.Now()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	state := &WorkflowState{Application: app, Status: StatusProcessing, Steps: []StepResult{}}
	log := w.logger.WithFields(map[string]interface{}{"applicationId": app.ID})
	log.Info("workflow started", nil)

	stages := w.stages()
	_, err := sequence(ctx, stages, state, func(s *WorkflowState) bool {
		return s.Status == StatusFail || s.Status == StatusSanctioned
	})
	if err != nil && state.Status != StatusFail && state.Status != StatusSanctioned {
		state.Status = StatusFail
		state.ErrorMessage = "workflow cancelled: " + err.Error()
	}
	state.Duration = time.Since(start)

	log.Info("workflow finished", map[string]interface{}{
		"status": state.Status,
		"steps":  len(state.Steps),
	})
	return *state
}

func (w *Workflow) validate(_ context.Context, s *WorkflowState) *WorkflowState {
	app := s.Application
	var errs []string
	validated := []string{}

	if ValidPAN(app.PAN) {
		validated = append(validated, "pan")
	} else {
		errs = append(errs, "Invalid PAN format. Expected: ABCDE1234F")
	}
	if isDigits(app.Aadhaar, 12) {
		validated = append(validated, "aadhaar")
	} else {
		errs = append(errs, "Invalid Aadhaar. Must be exactly 12 digits")
	}
	if app.LoanAmount >= MinLoanAmount {
		validated = append(validated, "loan_amount")
	} else {
		errs = append(errs, fmt.Sprintf("Loan amount ₹%s is below minimum ₹10,000", FormatAmount(app.LoanAmount)))
	}
	if app.Tenure >= MinTenure && app.Tenure <= MaxTenure {
		validated = append(validated, "tenure")
	} else {
		errs = append(errs, fmt.Sprintf("Tenure %d months must be between 6-360 months", app.Tenure))
	}
	if app.Income > 0 {
		validated = append(validated, "income")
	} else {
		errs = append(errs, "Income must be a positive value")
	}
	if isDigits(app.Mobile, 10) {
		validated = append(validated, "mobile")
	} else {
		errs = append(errs, "Invalid mobile number. Must be exactly 10 digits")
	}

	step := StepResult{
		Node:    NodeSales,
		Result:  StepSuccess,
		Data:    map[string]interface{}{"validated_fields": validated, "errors": errs},
		Message: "All validations passed",
	}
	if len(errs) > 0 {
		step.Result = StepFail
		step.Message = strings.Join(errs, "; ")
	}
	s.record(step, errs)
	return s
}

func (w *Workflow) verify(ctx context.Context, s *WorkflowState) *WorkflowState {
	app := s.Application
	check := func(fn func(context.Context, string) (IdentityCheck, error), value string) IdentityCheck {
		res, err := fn(ctx, value)
		if err != nil {
			return IdentityCheck{Message: err.Error()}
		}
		return res
	}

	pan := check(w.verifier.VerifyPAN, app.PAN)
	aadhaar := check(w.verifier.VerifyAadhaar, app.Aadhaar)
	mobile := check(w.verifier.VerifyMobile, app.Mobile)

	var errs []string
	for _, c := range []IdentityCheck{pan, aadhaar, mobile} {
		if !c.Verified {
			errs = append(errs, c.Message)
		}
	}

	step := StepResult{
		Node:   NodeVerification,
		Result: StepSuccess,
		Data: map[string]interface{}{
			"pan_verified":     pan.Verified,
			"pan_name":         pan.NameOnRecord,
			"aadhaar_verified": aadhaar.Verified,
			"aadhaar_masked":   aadhaar.Masked,
			"mobile_verified":  mobile.Verified,
			"mobile_masked":    mobile.Masked,
		},
		Message: "KYC verification completed successfully",
	}
	if len(errs) > 0 {
		step.Result = StepFail
		step.Message = strings.Join(errs, "; ")
	}
	s.record(step, errs)
	return s
}

func (w *Workflow) underwrite(ctx context.Context, s *WorkflowState) *WorkflowState {
	app := s.Application
	fail := func(err error) *WorkflowState {
		s.Steps = append(s.Steps, StepResult{
			Node:    NodeUnderwriting,
			Result:  StepFail,
			Data:    map[string]interface{}{"error": err.Error()},
			Message: "We encountered an issue during credit assessment. Please try again.",
		})
		s.Status = StatusFail
		s.CreditScore = 0
		s.ErrorMessage = "Credit assessment error: " + err.Error()
		return s
	}

	report, err := w.bureau.CreditScore(ctx, app.PAN)
	if err != nil {
		return fail(err)
	}
	if report.Rating == "" {
		report.Rating = CreditRating(report.Score)
	}

	emi := EMI(float64(app.LoanAmount), app.Tenure, DefaultAnnualRate)
	facts := UnderwritingFacts{
		CreditScore:    report.Score,
		MinCreditScore: MinCreditScore,
		EMI:            emi,
		Income:         app.Income,
		LoanAmount:     app.LoanAmount,
	}
	errs, err := w.rules.Violations(facts)
	if err != nil {
		return fail(err)
	}

	var dti float64
	if app.Income > 0 {
		dti = emi / float64(app.Income) * 100
	}

	step := StepResult{
		Node:   NodeUnderwriting,
		Result: StepSuccess,
		Data: map[string]interface{}{
			"credit_score":     report.Score,
			"credit_rating":    report.Rating,
			"emi_calculated":   Round2(emi),
			"max_emi_allowed":  Round2(float64(app.Income) * 0.5),
			"max_loan_allowed": app.Income * 50,
			"dti_ratio":        Round2(dti),
			"interest_rate":    "12% p.a.",
		},
		Message: "Congratulations! Your credit assessment is approved",
	}
	if len(errs) > 0 {
		step.Result = StepFail
		step.Message = strings.Join(errs, "; ")
	}
	s.CreditScore = report.Score
	s.record(step, errs)
	return s
}

func (w *Workflow) sanction(ctx context.Context, s *WorkflowState) *WorkflowState {
	app := s.Application
	terms := app.Terms()
	terms.CreditScore = s.CreditScore

	var (
		doc DocumentRef
		err error
	)
	if w.documents == nil {
		err = fmt.Errorf("no document generator configured")
	} else {
		doc, err = w.documents.Generate(ctx, app.ID, terms)
	}
	if err != nil {
		w.logger.WithError(err).Error("sanction letter generation failed", map[string]interface{}{
			"applicationId": app.ID,
		})
		s.Steps = append(s.Steps, StepResult{
			Node:    NodeSanction,
			Result:  StepFail,
			Data:    map[string]interface{}{"error": err.Error()},
			Message: "Failed to generate sanction letter: " + err.Error(),
		})
		s.Status = StatusFail
		s.ErrorMessage = "PDF generation failed: " + err.Error()
		return s
	}

	s.Steps = append(s.Steps, StepResult{
		Node:   NodeSanction,
		Result: StepSuccess,
		Data: map[string]interface{}{
			"document_generated": true,
			"document_path":      doc.Path,
			"document_url":       doc.URL,
		},
		Message: "Sanction letter generated successfully",
	})
	s.Document = &doc
	s.Status = StatusSanctioned
	s.ErrorMessage = ""
	return s
}
