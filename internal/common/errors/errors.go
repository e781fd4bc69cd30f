// Package errors provides standardized error handling for the generation workers
// and its mapping onto BPMN errors raised back to Zeebe.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeWorkflowNotFound        ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrCodeWorkflowRegistryInvalid ErrorCode = "WORKFLOW_REGISTRY_INVALID"
	ErrCodeWorkflowSelectionFailed ErrorCode = "WORKFLOW_SELECTION_FAILED"

	ErrCodeTemplateSubstitutionFailed ErrorCode = "TEMPLATE_SUBSTITUTION_FAILED"
	ErrCodeInvalidWorkflowInput       ErrorCode = "INVALID_WORKFLOW_INPUT"

	ErrCodeBackendSubmitFailed ErrorCode = "BACKEND_SUBMIT_FAILED"
	ErrCodeBackendTimeout      ErrorCode = "BACKEND_TIMEOUT"
	ErrCodeBackendRejected     ErrorCode = "BACKEND_REJECTED"

	ErrCodeRunStateUnavailable  ErrorCode = "RUN_STATE_UNAVAILABLE"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewWorkflowNotFoundError(workflowID string) *StandardError {
	return newError(ErrCodeWorkflowNotFound, "Workflow not found in registry",
		fmt.Sprintf("workflowId: %s", workflowID), false)
}

func NewWorkflowRegistryInvalidError(err error) *StandardError {
	return newError(ErrCodeWorkflowRegistryInvalid, "Workflow registry could not be loaded", err.Error(), false)
}

func NewWorkflowSelectionFailedError(details string) *StandardError {
	return newError(ErrCodeWorkflowSelectionFailed, "No workflow matches the request", details, false)
}

// NewTemplateSubstitutionError is non-retryable: the same inputs always fail the same way.
func NewTemplateSubstitutionError(workflowID string, err error) *StandardError {
	e := newError(ErrCodeTemplateSubstitutionFailed, "Workflow template could not be filled", err.Error(), false)
	e.Metadata = map[string]interface{}{"workflowId": workflowID}
	return e
}

func NewInvalidWorkflowInputError(details string) *StandardError {
	return newError(ErrCodeInvalidWorkflowInput, "Invalid workflow job input", details, false)
}

func NewBackendSubmitFailedError(endpoint string, err error) *StandardError {
	e := newError(ErrCodeBackendSubmitFailed, "Generation backend request failed", err.Error(), true)
	e.Metadata = map[string]interface{}{"endpoint": endpoint}
	return e
}

func NewBackendTimeoutError(endpoint string) *StandardError {
	return newError(ErrCodeBackendTimeout, "Generation backend timed out",
		fmt.Sprintf("endpoint: %s", endpoint), true)
}

func NewBackendRejectedError(endpoint string, status int, body string) *StandardError {
	e := newError(ErrCodeBackendRejected, "Generation backend rejected the request",
		fmt.Sprintf("status %d: %s", status, body), false)
	e.Metadata = map[string]interface{}{"endpoint": endpoint, "status": status}
	return e
}

func NewRunStateUnavailableError(workflowName string, err error) *StandardError {
	e := newError(ErrCodeRunStateUnavailable, "Run state store unavailable", err.Error(), true)
	e.Metadata = map[string]interface{}{"workflowName": workflowName}
	return e
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert failed", err.Error(), true)
}

// BPMNErrorMapping maps internal error codes to BPMN error codes. They are identical today.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeWorkflowNotFound:           "WORKFLOW_NOT_FOUND",
	ErrCodeWorkflowRegistryInvalid:    "WORKFLOW_REGISTRY_INVALID",
	ErrCodeWorkflowSelectionFailed:    "WORKFLOW_SELECTION_FAILED",
	ErrCodeTemplateSubstitutionFailed: "TEMPLATE_SUBSTITUTION_FAILED",
	ErrCodeInvalidWorkflowInput:       "INVALID_WORKFLOW_INPUT",
	ErrCodeBackendSubmitFailed:        "BACKEND_SUBMIT_FAILED",
	ErrCodeBackendTimeout:             "BACKEND_TIMEOUT",
	ErrCodeBackendRejected:            "BACKEND_REJECTED",
	ErrCodeRunStateUnavailable:        "RUN_STATE_UNAVAILABLE",
	ErrCodeDatabaseInsertFailed:       "DATABASE_INSERT_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeBackendSubmitFailed,
		ErrCodeRunStateUnavailable,
		ErrCodeDatabaseInsertFailed:
		return 3
	case ErrCodeBackendTimeout:
		return 2
	default:
		return 0
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.HasPrefix(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.HasPrefix(codeStr, "BACKEND"):
		return "BACKEND"
	case strings.HasPrefix(codeStr, "RUN_STATE"), strings.HasPrefix(codeStr, "DATABASE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
