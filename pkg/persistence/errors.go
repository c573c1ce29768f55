package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTargetNotFound indicates no target matched the given id or url.
	ErrTargetNotFound = errors.New("target not found")

	// ErrTargetAlreadyExists indicates another target already monitors the url.
	ErrTargetAlreadyExists = errors.New("target already exists")

	// ErrAuditRecordExists indicates the workflow run was already recorded.
	ErrAuditRecordExists = errors.New("audit record already exists")

	// ErrAuditRecordNotFound indicates no audit record exists for the workflow id.
	ErrAuditRecordNotFound = errors.New("audit record not found")
)

// TargetError wraps target-related errors with the identifier that was used.
type TargetError struct {
	Op  string // Operation being performed (e.g., "TargetByID", "SaveTarget")
	Key string // Target id or url
	Err error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s operation failed for target %s: %v", e.Op, e.Key, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

func (e *TargetError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewTargetError(op, key string, err error) *TargetError {
	return &TargetError{Op: op, Key: key, Err: err}
}

// AuditError wraps audit record errors with the workflow id.
type AuditError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow run %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

func (e *AuditError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewAuditError(op, workflowID string, err error) *AuditError {
	return &AuditError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsTargetNotFound checks if an error indicates a target was not found.
func IsTargetNotFound(err error) bool {
	return errors.Is(err, ErrTargetNotFound)
}

// IsTargetAlreadyExists checks if an error indicates a duplicate target url.
func IsTargetAlreadyExists(err error) bool {
	return errors.Is(err, ErrTargetAlreadyExists)
}

// IsAuditRecordExists checks if an error indicates a second write of an audit record.
func IsAuditRecordExists(err error) bool {
	return errors.Is(err, ErrAuditRecordExists)
}

// IsAuditRecordNotFound checks if an error indicates a missing audit record.
func IsAuditRecordNotFound(err error) bool {
	return errors.Is(err, ErrAuditRecordNotFound)
}
