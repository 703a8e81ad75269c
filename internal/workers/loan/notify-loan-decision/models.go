// internal/workers/loan/notify-loan-decision/models.go
package notifyloandecision

import "loan-workers/internal/models"

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

type Input struct {
	ApplicationID     string `json:"applicationId"`
	CustomerName      string `json:"customerName"`
	Email             string `json:"email"`
	Mobile            string `json:"mobile"`
	ApplicationStatus string `json:"applicationStatus"`
	DocumentURL       string `json:"documentUrl"`
	ErrorMessage      string `json:"errorMessage"`
}

type Output struct {
	Notifications []models.Notification `json:"notifications"`
	SentCount     int                   `json:"sentCount"`
}

type message struct {
	Subject string
	Body    string
}
