// internal/workers/loan/override-application-status/models.go
package overrideapplicationstatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	NewStatus     string `json:"newStatus"`
	Reason        string `json:"reason"`
	ChangedBy     string `json:"changedBy"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	OldStatus     string `json:"oldStatus"`
	NewStatus     string `json:"applicationStatus"`
	ChangedBy     string `json:"changedBy"`
	ChangedAt     string `json:"changedAt"`
}
