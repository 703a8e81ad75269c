// internal/workers/loan/search-evaluations/models.go
package searchevaluations

import "loan-workers/internal/store"

type Input struct {
	ApplicationID string `json:"applicationId"`
	EvaluatorID   string `json:"evaluatorId"`
	Decision      string `json:"decision"`
	RunStatus     string `json:"runStatus"`
	MinScore      *int   `json:"minScore"`
	MaxScore      *int   `json:"maxScore"`
	From          int    `json:"from"`
	Size          int    `json:"size"`
}

type Output struct {
	Evaluations []store.VerdictDocument `json:"evaluations"`
	Total       int                     `json:"total"`
	Returned    int                     `json:"returned"`
	TookMs      int                     `json:"tookMs"`
}
