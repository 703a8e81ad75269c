// pkg/registry/schema.go
package registry

import "time"

// Implementation states an activity moves through.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusVerified   = "verified"
)

// ActivityRegistry describes every service task the loan process models
// reference, keyed by task type.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Version     string `json:"version"`
	TaskType    string `json:"taskType"`
	Status      string `json:"implementationStatus"`
	// InputSchema is a JSON schema for the job variables the worker reads.
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	// ErrorCodes are the BPMN error codes the worker may throw.
	ErrorCodes []string `json:"errorCodes"`
	Timeout    string   `json:"timeout"`
	Retries    int      `json:"retries"`
	Workflows  []string `json:"workflows"`
	Tags       []string `json:"tags"`
}

// TimeoutDuration parses Timeout, returning zero when it is unset or invalid.
func (a Activity) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0
	}
	return d
}
