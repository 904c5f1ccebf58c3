package reconerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("amount", "must be positive")
	assert.Equal(t, "validation failed for amount: must be positive", err.Error())
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsTransient(err))

	assert.Equal(t, "validation failed: empty", (&ValidationError{Reason: "empty"}).Error())
}

func TestTransientError(t *testing.T) {
	cause := errors.New("database is locked")
	err := Transient("list transactions", cause)

	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(fmt.Errorf("outer: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "list transactions")
	assert.Nil(t, Transient("noop", nil))
}

func TestUnavailableError(t *testing.T) {
	err := &UnavailableError{Service: "gemini", Err: errors.New("timeout")}
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "gemini unavailable: timeout", err.Error())
	assert.Equal(t, "gemini unavailable", (&UnavailableError{Service: "gemini"}).Error())
	assert.False(t, errors.Is(err, ErrNotFound))
}
