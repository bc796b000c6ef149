// Package errors provides the error taxonomy shared by the HTTP API and the
// workflow workers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	ErrCodeDependencyDegraded ErrorCode = "DEPENDENCY_DEGRADED"
	ErrCodeDependencyTimeout  ErrorCode = "DEPENDENCY_TIMEOUT"
	ErrCodeAdmissionRejected  ErrorCode = "ADMISSION_REJECTED"
	ErrCodeInvariantViolation ErrorCode = "COMPUTATION_INVARIANT_VIOLATION"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
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

// WithMetadata attaches a caller-visible key.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// Response is the public body for a failed request. It never carries Details.
type Response struct {
	Error     ErrorCode              `json:"error"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToResponse strips internal details.
func (e *StandardError) ToResponse() Response {
	return Response{
		Error:     e.Code,
		Message:   e.Message,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
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

// NewValidationError reports missing or invalid identifying fields. Never retried.
func NewValidationError(message string, fields ...string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeValidation,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	if len(fields) > 0 {
		e.WithMetadata("fields", fields)
	}
	return e
}

// NewInvalidPayloadError reports a body that could not be decoded or failed
// schema validation.
func NewInvalidPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   "Request payload is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDependencyDegradedError(dependency string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDependencyDegraded,
		Message:   fmt.Sprintf("%s unavailable, fallback applied", dependency),
		Details:   errString(err),
		Retryable: true,
		Metadata:  map[string]interface{}{"dependency": dependency},
		Timestamp: time.Now().UTC(),
	}
}

func NewDependencyTimeoutError(dependency string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeDependencyTimeout,
		Message:   fmt.Sprintf("%s timed out after %s", dependency, timeout),
		Retryable: true,
		Metadata:  map[string]interface{}{"dependency": dependency},
		Timestamp: time.Now().UTC(),
	}
}

// NewAdmissionRejectedError carries the rate-limit contract in Metadata.
func NewAdmissionRejectedError(tier string, limit int64, reset time.Time, retryAfter int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeAdmissionRejected,
		Message:   "Too many requests, please try again later",
		Retryable: true,
		Metadata: map[string]interface{}{
			"tier":       tier,
			"limit":      limit,
			"remaining":  0,
			"reset":      reset.UTC().Format(time.RFC3339),
			"retryAfter": retryAfter,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvariantViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvariantViolation,
		Message:   "Computation invariant violated",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errString(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewServiceUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeServiceUnavailable,
		Message:   "Service unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Authentication required",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion
// ==========================

// AsStandardError unwraps err to a StandardError, wrapping unknown errors as
// INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps a code to its response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAdmissionRejected:
		return http.StatusTooManyRequests
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeDependencyTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:         "DEAL_VALIDATION_FAILED",
	ErrCodeInvalidPayload:     "DEAL_PAYLOAD_INVALID",
	ErrCodeDependencyDegraded: "DEPENDENCY_DEGRADED",
	ErrCodeDependencyTimeout:  "DEPENDENCY_TIMEOUT",
	ErrCodeAdmissionRejected:  "ADMISSION_REJECTED",
	ErrCodeInvariantViolation: "COMPUTATION_INVARIANT_VIOLATION",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDependencyDegraded, ErrCodeServiceUnavailable, ErrCodeInternal:
		return 3
	case ErrCodeDependencyTimeout, ErrCodeAdmissionRejected:
		return 2
	default:
		return 0 // Business errors: no retry
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

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
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
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PAYLOAD"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "DEPENDENCY"):
		return "DEPENDENCY"
	case strings.Contains(codeStr, "ADMISSION"):
		return "ADMISSION"
	case strings.Contains(codeStr, "INVARIANT"):
		return "COMPUTATION"
	default:
		return "OTHER"
	}
}
