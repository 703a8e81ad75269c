// internal/workers/loan/create-loan-application/models.go
package createloanapplication

import "loan-workers/internal/pipeline"

type Input struct {
	Application pipeline.Application `json:"application"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"` // ISO 8601
}
