// internal/workers/loan/validate-loan-application/models.go
package validateloanapplication

import (
	"loan-workers/internal/common/validation"
	"loan-workers/internal/pipeline"
)

type Input struct {
	Application map[string]interface{} `json:"application"`
}

type Output struct {
	IsValid          bool                         `json:"isValid"`
	Application      *pipeline.Application        `json:"application,omitempty"`
	ValidationErrors []validation.ValidationError `json:"validationErrors"`
	MissingFields    []string                     `json:"missingFields"`
}
