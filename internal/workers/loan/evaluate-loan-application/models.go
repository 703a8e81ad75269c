// internal/workers/loan/evaluate-loan-application/models.go
package evaluateloanapplication

import "loan-workers/internal/pipeline"

type Input struct {
	Application pipeline.Application `json:"application"`
}

// Output flattens the run result into process variables that gateways can
// branch on without parsing nested objects.
type Output struct {
	ApplicationID string             `json:"applicationId"`
	Status        string             `json:"applicationStatus"`
	FinalDecision string             `json:"finalDecision,omitempty"`
	Scores        map[string]int     `json:"scores"`
	Decisions     map[string]string  `json:"decisions"`
	Summary       string             `json:"summary"`
	DocumentURL   string             `json:"documentUrl,omitempty"`
	ErrorMessage  string             `json:"errorMessage,omitempty"`
	DurationMs    int64              `json:"durationMs"`
	Verdicts      []pipeline.Verdict `json:"verdicts"`
}
