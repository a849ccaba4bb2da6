package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"validation", NewValidationError("subject_id is required"), ErrCodeValidation, false},
		{"unrecognized kind", NewUnrecognizedChangeKindError("escalated"), ErrCodeUnrecognizedChangeKind, false},
		{"entity not found", NewEntityNotFoundError("prob-1"), ErrCodeEntityNotFound, false},
		{"store write failed", NewStoreWriteFailedError(errors.New("constraint")), ErrCodeStoreWriteFailed, true},
		{"store unavailable", NewStoreUnavailableError(errors.New("refused")), ErrCodeStoreUnavailable, true},
		{"not found", NewNotFoundError("n-1"), ErrCodeNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.False(t, tt.err.Timestamp.IsZero())
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestNormalize(t *testing.T) {
	std := NewValidationError("bad input")
	assert.Same(t, std, Normalize(std))

	wrapped := fmt.Errorf("dispatch: %w", std)
	assert.Same(t, std, Normalize(wrapped))

	plain := Normalize(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestIsCodeAndRetryable(t *testing.T) {
	err := NewStoreUnavailableError(errors.New("refused"))

	assert.True(t, IsCode(err, ErrCodeStoreUnavailable))
	assert.False(t, IsCode(err, ErrCodeValidation))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{NewValidationError("x"), http.StatusBadRequest},
		{NewUnrecognizedChangeKindError("x"), http.StatusBadRequest},
		{NewEntityNotFoundError("x"), http.StatusNotFound},
		{NewNotFoundError("x"), http.StatusNotFound},
		{NewStoreUnavailableError(errors.New("x")), http.StatusServiceUnavailable},
		{NewStoreWriteFailedError(errors.New("x")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatus(tt.err))
	}
}
