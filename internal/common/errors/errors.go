// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeMissingFields               ErrorCode = "MISSING_FIELDS"
	ErrCodeExtractionFailed            ErrorCode = "EXTRACTION_FAILED"

	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeApplicationNotFound  ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidStatus        ErrorCode = "INVALID_STATUS"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexFailed       ErrorCode = "INDEX_FAILED"

	ErrCodePipelineFailed           ErrorCode = "PIPELINE_FAILED"
	ErrCodeDocumentGenerationFailed ErrorCode = "DOCUMENT_GENERATION_FAILED"
	ErrCodeBureauUnavailable        ErrorCode = "BUREAU_UNAVAILABLE"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err to a *StandardError if there is one in its chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationValidationFailedError creates a non-retryable validation error.
func NewApplicationValidationFailedError(details string) *StandardError {
	return newError(ErrCodeApplicationValidationFailed, "Application data validation failed", details, false)
}

// NewMissingFieldsError lists the application fields that are still empty.
func NewMissingFieldsError(fields []string) *StandardError {
	return newError(ErrCodeMissingFields, "Application is incomplete", strings.Join(fields, ", "), false).
		WithMetadata("missingFields", fields)
}

func NewExtractionFailedError(details string) *StandardError {
	return newError(ErrCodeExtractionFailed, "Could not extract application fields", details, false)
}

func NewDuplicateApplicationError(applicationID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists",
		fmt.Sprintf("applicationId: %s", applicationID), false)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found",
		fmt.Sprintf("applicationId: %s", applicationID), false)
}

func NewInvalidStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidStatus, "Unknown application status",
		fmt.Sprintf("status: %s", status), false)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewDatabaseInsertFailedError creates a retryable write error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Failed to write to the database", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("queryType: %s", queryType), true)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Verdict search failed", err.Error(), true)
}

func NewSearchTimeoutError() *StandardError {
	return newError(ErrCodeSearchTimeout, "Verdict search timed out", "", true)
}

func NewIndexFailedError(err error) *StandardError {
	return newError(ErrCodeIndexFailed, "Failed to index verdicts", err.Error(), true)
}

// NewPipelineFailedError reports a run that ended in FAIL. The run itself is
// not retried, so this is a business error.
func NewPipelineFailedError(applicationID, message string) *StandardError {
	return newError(ErrCodePipelineFailed, "Loan evaluation failed", message, false).
		WithMetadata("applicationId", applicationID)
}

func NewDocumentGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeDocumentGenerationFailed, "Sanction letter generation failed", err.Error(), false)
}

func NewBureauUnavailableError(err error) *StandardError {
	return newError(ErrCodeBureauUnavailable, "Credit bureau unavailable", err.Error(), true)
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Failed to send notification",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// NewExternalServiceError wraps a failure of a downstream dependency.
func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("%s unavailable", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("%s timed out", service), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by
// boundary events in the loan process models.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeApplicationValidationFailed: "APPLICATION_VALIDATION_FAILED",
	ErrCodeMissingFields:               "APPLICATION_INCOMPLETE",
	ErrCodeExtractionFailed:            "APPLICATION_INCOMPLETE",
	ErrCodeDuplicateApplication:        "DUPLICATE_APPLICATION",
	ErrCodeApplicationNotFound:         "APPLICATION_NOT_FOUND",
	ErrCodeInvalidStatus:               "INVALID_STATUS",
	ErrCodeDatabaseConnectionFailed:    "DATABASE_ERROR",
	ErrCodeDatabaseInsertFailed:        "DATABASE_ERROR",
	ErrCodeQueryExecutionFailed:        "DATABASE_ERROR",
	ErrCodeQueryTimeout:                "DATABASE_ERROR",
	ErrCodeSearchQueryFailed:           "SEARCH_ERROR",
	ErrCodeSearchTimeout:               "SEARCH_ERROR",
	ErrCodeIndexFailed:                 "SEARCH_ERROR",
	ErrCodePipelineFailed:              "EVALUATION_FAILED",
	ErrCodeDocumentGenerationFailed:    "EVALUATION_FAILED",
	ErrCodeBureauUnavailable:           "BUREAU_UNAVAILABLE",
	ErrCodeNotificationSendFailed:      "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeBureauUnavailable,
		ErrCodeTimeout:
		return 2

	default:
		return 0 // business errors
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "PIPELINE") || strings.Contains(codeStr, "DOCUMENT") || strings.Contains(codeStr, "BUREAU"):
		return "EVALUATION"
	case strings.Contains(codeStr, "APPLICATION") || strings.Contains(codeStr, "STATUS"):
		return "APPLICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") ||
		strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "EXTRACTION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
