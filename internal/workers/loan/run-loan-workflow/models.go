// internal/workers/loan/run-loan-workflow/models.go
package runloanworkflow

import "loan-workers/internal/pipeline"

type Input struct {
	Application pipeline.Application `json:"application"`
}

type Output struct {
	ApplicationID string                `json:"applicationId"`
	Status        string                `json:"applicationStatus"`
	CreditScore   int                   `json:"creditScore"`
	FailedNode    string                `json:"failedNode,omitempty"`
	Steps         []pipeline.StepResult `json:"steps"`
	DocumentURL   string                `json:"documentUrl,omitempty"`
	ErrorMessage  string                `json:"errorMessage,omitempty"`
}
