// internal/models/notification.go
package models

// Notification records one message sent about a loan decision.
type Notification struct {
	ID            string `json:"id"`
	ApplicationID string `json:"applicationId"`
	Channel       string `json:"channel"` // "email", "sms"
	Recipient     string `json:"recipient"`
	Status        string `json:"status"` // "sent", "failed", "disabled"
	MessageID     string `json:"messageId,omitempty"`
	Error         string `json:"error,omitempty"`
	SentAt        string `json:"sentAt,omitempty"`
}
