// internal/workers/loan/extract-application-fields/models.go
package extractapplicationfields

import "loan-workers/internal/pipeline"

type Input struct {
	Application pipeline.Application `json:"application"`
	Message     string               `json:"message"`
}

type Output struct {
	Application     pipeline.Application   `json:"application"`
	ExtractedFields map[string]interface{} `json:"extractedFields"`
	MissingFields   []string               `json:"missingFields"`
	IsComplete      bool                   `json:"isComplete"`
}
