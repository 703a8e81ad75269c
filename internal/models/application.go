// internal/models/application.go
package models

import "time"

// ApplicationRecord is a row of the applications table. Applicant columns
// are empty for runs persisted without a prior create.
type ApplicationRecord struct {
	ID            string    `json:"applicationId"`
	CustomerName  string    `json:"customerName,omitempty"`
	Mobile        string    `json:"mobile,omitempty"`
	PAN           string    `json:"pan,omitempty"`
	AadhaarMasked string    `json:"aadhaarMasked,omitempty"`
	LoanAmount    int64     `json:"loanAmount,omitempty"`
	Tenure        int       `json:"tenure,omitempty"`
	Income        int64     `json:"income,omitempty"`
	Status        string    `json:"status"`
	FinalDecision string    `json:"finalDecision,omitempty"`
	DocumentURL   string    `json:"documentUrl,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ApplicationStatus is the slice of an application that status lookups
// return and the cache holds.
type ApplicationStatus struct {
	ApplicationID string    `json:"applicationId"`
	Status        string    `json:"status"`
	FinalDecision string    `json:"finalDecision,omitempty"`
	DocumentURL   string    `json:"documentUrl,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
