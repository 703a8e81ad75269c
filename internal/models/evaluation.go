package models

import "time"

// EvaluationRecord is one verdict as stored in agent_evaluations.
type EvaluationRecord struct {
	ApplicationID      string                 `json:"applicationId"`
	AgentName          string                 `json:"agentName"`
	AgentType          string                 `json:"agentType"`
	Score              int                    `json:"score"`
	Decision           string                 `json:"decision"`
	Confidence         int                    `json:"confidence"`
	ExplanationSummary string                 `json:"explanationSummary"`
	DetailedAnalysis   map[string]interface{} `json:"detailedAnalysis,omitempty"`
	ProcessingTimeMs   int64                  `json:"processingTimeMs"`
	CreatedAt          time.Time              `json:"createdAt"`
}

// StatusChange is a row of status_history.
type StatusChange struct {
	ApplicationID string    `json:"applicationId"`
	OldStatus     string    `json:"oldStatus,omitempty"`
	NewStatus     string    `json:"newStatus"`
	Reason        string    `json:"reason,omitempty"`
	ChangedBy     string    `json:"changedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}
