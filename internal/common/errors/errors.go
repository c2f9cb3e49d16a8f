// Package errors provides the typed error taxonomy for workflow transitions.
package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeValidationFailed: malformed input to a transition (missing
	// rejection reason, unknown track, ...). No state change occurs.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrCodeInvalidState: transition attempted from a state that does not
	// permit it (terminal application, wrong stage). No state change.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeNotAuthorized: actor's role does not authorize the action at
	// this stage.
	ErrCodeNotAuthorized ErrorCode = "NOT_AUTHORIZED"

	// ErrCodeConflict: concurrent modification detected (optimistic lock
	// failure). Callers retry the whole operation against fresh state.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeNotFound: unknown application, work item or reviewer ID.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInternal: unexpected failure outside the transition taxonomy
	// (storage faults and the like).
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error.
func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError creates a non-retryable invalid transition error.
func NewInvalidStateError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthorizationError creates a non-retryable authorization error.
func NewAuthorizationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAuthorized,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates a retryable concurrent-modification error.
func NewConflictError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   message,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable not-found error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   message,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize ensures any error surfaces as a StandardError. Already-typed
// errors pass through untouched.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if goerrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError("unexpected error", err)
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the error code, or empty string for untyped errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if goerrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidationFailed }

// IsInvalidState reports whether err is an invalid-state error.
func IsInvalidState(err error) bool { return CodeOf(err) == ErrCodeInvalidState }

// IsAuthorization reports whether err is an authorization error.
func IsAuthorization(err error) bool { return CodeOf(err) == ErrCodeNotAuthorized }

// IsConflict reports whether err is an optimistic-concurrency conflict.
func IsConflict(err error) bool { return CodeOf(err) == ErrCodeConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// GetRetryCount returns the recommended retry count per error code. Only
// conflicts and internal faults are worth retrying; the rest need corrected
// input or state.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConflict:
		return 3
	case ErrCodeInternal:
		return 2
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
