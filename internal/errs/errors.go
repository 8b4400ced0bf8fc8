// Package errs defines the error taxonomy shared by the lifecycle engine,
// repositories and HTTP layer. Validation failures happen before any
// persistence call; concurrency failures are retryable after a reload.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError indicates an illegal transition, a missing required field
// or an empty required note. It is raised before any persistence call, so a
// failed operation leaves no side effect behind.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError for a specific field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConcurrencyError indicates the stored row version advanced past the version
// the caller loaded. The operation is safe to retry after reloading.
type ConcurrencyError struct {
	Table string
	ID    string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s %s changed since it was loaded; reload and retry", e.Table, e.ID)
}

// PersistenceError wraps a store failure. Mutating operations are never
// retried automatically: a retry of a write that actually succeeded would
// append the audit event twice.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// BatchFailure records one failed id inside a bulk operation.
type BatchFailure struct {
	ID  string
	Err error
}

// BatchError collects partial results of a bulk operation. Individual
// failures never abort the remaining batch.
type BatchError struct {
	Succeeded []string
	Failed    []BatchFailure
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk operation: %d succeeded, %d failed", len(e.Succeeded), len(e.Failed))
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConcurrency reports whether err is a ConcurrencyError.
func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
