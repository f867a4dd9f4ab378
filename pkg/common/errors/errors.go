package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the taskflow library

var (
	// ErrPoolClosed indicates that a submission was attempted after pool
	// teardown has begun
	ErrPoolClosed = errors.New("pool is shut down")

	// ErrQueueFull indicates that a bounded task queue is at capacity
	ErrQueueFull = errors.New("task queue is full")

	// ErrNilTask indicates that a nil task was submitted
	ErrNilTask = errors.New("task cannot be nil")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrQueueFull)
}

// ValidationError describes a configuration value that failed validation.
// It unwraps to ErrInvalidConfiguration so callers can match it with
// errors.Is without knowing the concrete type.
type ValidationError struct {
	Module string
	Field  string
	Value  any
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value any, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s %s (got %v)", e.Module, e.Field, e.Reason, e.Value)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// Unwrap makes ValidationError match ErrInvalidConfiguration via errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsValidationError returns true if err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
