// Package reconerror defines the error values shared by reconciliation,
// classification and posting.
package reconerror

import (
	"errors"
	"fmt"
)

// Business-rule failures. These are never retried.
var (
	ErrAlreadyReconciled      = errors.New("transaction already reconciled")
	ErrInvalidChecksum        = errors.New("invalid reference checksum")
	ErrDuplicateLedgerEntry   = errors.New("ledger entry already exists for source document")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidState           = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrUnavailable            = errors.New("collaborator unavailable")
)

// ErrConflict is returned by stores when a compare-and-set on the current
// status fails.
var ErrConflict = errors.New("status changed concurrently")

// ValidationError represents a rejected input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransientError marks a store failure that may succeed when retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. A nil err stays nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// UnavailableError is returned when an external collaborator cannot answer.
// It matches ErrUnavailable with errors.Is.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Service)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnavailable) true.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
