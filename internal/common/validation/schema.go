package validation

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the errors into "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

// ApplicationSchema is the structural contract of a loan application. Value
// ranges are left to the evaluators, which score them instead of rejecting.
const ApplicationSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["customerName", "mobile", "pan", "aadhaar", "loanAmount", "tenure", "income"],
	"properties": {
		"applicationId": {"type": "string", "maxLength": 64},
		"customerName":  {"type": "string", "minLength": 1, "maxLength": 120},
		"mobile":        {"type": "string", "pattern": "^[0-9]{10}$"},
		"pan":           {"type": "string", "pattern": "^[A-Za-z]{5}[0-9]{4}[A-Za-z]$"},
		"aadhaar":       {"type": "string", "pattern": "^[0-9]{4}[ -]?[0-9]{4}[ -]?[0-9]{4}$"},
		"loanAmount":    {"type": "integer", "exclusiveMinimum": 0},
		"tenure":        {"type": "integer", "minimum": 1},
		"income":        {"type": "integer", "minimum": 0}
	}
}`

var applicationSchema = mustCompile(ApplicationSchema)

func mustCompile(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return s
}

// ValidateApplication checks doc, usually a decoded JSON object or a struct
// with json tags, against ApplicationSchema.
func ValidateApplication(doc interface{}) (*ValidationResult, error) {
	return validate(applicationSchema, gojsonschema.NewGoLoader(doc))
}

// ValidateJSON checks a raw JSON document against an arbitrary schema.
func ValidateJSON(schema string, document []byte) (*ValidationResult, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return validate(s, gojsonschema.NewBytesLoader(document))
}

func validate(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if desc.Type() == "required" {
			if p, ok := desc.Details()["property"].(string); ok {
				field = p
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    errorCode(desc.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

func errorCode(kind string) string {
	switch kind {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "invalid_type":
		return "INVALID_TYPE"
	case "pattern", "format":
		return "PATTERN_MISMATCH"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	case "number_gte", "number_gt":
		return "MIN_VALUE_VIOLATION"
	case "number_lte", "number_lt":
		return "MAX_VALUE_VIOLATION"
	default:
		return "SCHEMA_VIOLATION"
	}
}
