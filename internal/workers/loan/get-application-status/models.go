// internal/workers/loan/get-application-status/models.go
package getapplicationstatus

import "loan-workers/internal/models"

type Input struct {
	ApplicationID      string `json:"applicationId"`
	IncludeEvaluations bool   `json:"includeEvaluations"`
}

type Output struct {
	ApplicationID string                    `json:"applicationId"`
	Status        string                    `json:"applicationStatus"`
	FinalDecision string                    `json:"finalDecision,omitempty"`
	DocumentURL   string                    `json:"documentUrl,omitempty"`
	ErrorMessage  string                    `json:"errorMessage,omitempty"`
	UpdatedAt     string                    `json:"updatedAt"`
	FromCache     bool                      `json:"fromCache"`
	Evaluations   []models.EvaluationRecord `json:"evaluations,omitempty"`
}
