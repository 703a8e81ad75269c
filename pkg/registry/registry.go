// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"loan-workers/internal/common/validation"
)

// DefaultPath is where the worker manager and loanctl look for the registry.
const DefaultPath = "configs/activity-registry.json"

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrDuplicateID      = errors.New("duplicate activity id")
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry as indented JSON, creating the directory if
// needed.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Lookup finds the activity implementing taskType.
func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

func (r *ActivityRegistry) Add(a Activity, now time.Time) error {
	for _, existing := range r.Activities {
		if existing.ID == a.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
		}
	}
	r.Activities = append(r.Activities, a)
	r.LastUpdated = now.UTC().Format(time.RFC3339)
	return nil
}

// Update sets one scalar field of the activity with the given id.
func (r *ActivityRegistry) Update(id, field, value string, now time.Time) error {
	for i := range r.Activities {
		a := &r.Activities[i]
		if a.ID != id {
			continue
		}
		switch field {
		case "status":
			a.Status = value
		case "version":
			a.Version = value
		case "displayName":
			a.DisplayName = value
		case "description":
			a.Description = value
		case "category":
			a.Category = value
		case "taskType":
			a.TaskType = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout value: %w", err)
			}
			a.Timeout = value
		case "retries":
			retries, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid retries value: %w", err)
			}
			a.Retries = retries
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		r.LastUpdated = now.UTC().Format(time.RFC3339)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrActivityNotFound, id)
}

// Validate checks that ids and task types are unique and that the required
// fields are set.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: id")
		}
		if ids[a.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: displayName", a.ID)
		}
		if a.Category == "" {
			return fmt.Errorf("activity %s missing required field: category", a.ID)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: taskType", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("activity %s: task type %s is already registered", a.ID, a.TaskType)
		}
		taskTypes[a.TaskType] = true

		if a.Timeout != "" && a.TimeoutDuration() <= 0 {
			return fmt.Errorf("activity %s has invalid timeout %q", a.ID, a.Timeout)
		}
	}
	return nil
}

// ValidateInput checks job variables against the activity's input schema.
// An activity without a schema accepts anything.
func (a Activity) ValidateInput(variables []byte) (*validation.ValidationResult, error) {
	if len(a.InputSchema) == 0 {
		return &validation.ValidationResult{Valid: true}, nil
	}
	schema, err := json.Marshal(a.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema of %s: %w", a.ID, err)
	}
	return validation.ValidateJSON(string(schema), variables)
}
