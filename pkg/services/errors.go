// Package services provides the target management operations behind the API.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/changewatch/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNoUpdateFields  = errors.New("no update fields provided")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrFrequencyTooLow = errors.New("frequency_minutes must be at least 1")
)

// Lookup and conflict errors come straight from persistence.
var (
	ErrTargetNotFound      = persistence.ErrTargetNotFound
	ErrTargetAlreadyExists = persistence.ErrTargetAlreadyExists
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNoUpdateFields) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrFrequencyTooLow)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTargetAlreadyExists)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTargetNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
