// Package errors provides standardized error handling for the notification engine.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnrecognizedChangeKind ErrorCode = "UNRECOGNIZED_CHANGE_KIND"
	ErrCodeEntityNotFound         ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeStoreWriteFailed       ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeStoreUnavailable       ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
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

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Invalid dispatch input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnrecognizedChangeKindError creates a non-retryable error for an unknown
// change kind. No notifications are created for such events.
func NewUnrecognizedChangeKindError(kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnrecognizedChangeKind,
		Message:   "Unrecognized change kind",
		Details:   fmt.Sprintf("kind: %s", kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityNotFoundError creates a non-retryable error for a missing problem
// snapshot. The dispatch is aborted with no partial notification.
func NewEntityNotFoundError(subjectID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityNotFound,
		Message:   "Problem not found",
		Details:   fmt.Sprintf("subjectId: %s", subjectID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreWriteFailedError creates a retryable batch-write error. Retry policy
// belongs to the caller; the dispatcher never retries internally.
func NewStoreWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Notification batch write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable transport-level store error.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Notification store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable error for a single-record store
// operation referencing an absent id. Delete tolerates absence and never
// returns this.
func NewNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Inspection Helpers
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf returns the error code carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	return Normalize(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return Normalize(err).Retryable
}

// HTTPStatus maps an error to the status the request endpoint responds with:
// 4xx for bad input, unrecognized kind and missing entities, 5xx for store
// failures.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeUnrecognizedChangeKind:
		return http.StatusBadRequest
	case ErrCodeEntityNotFound, ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeStoreWriteFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
