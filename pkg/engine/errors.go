package engine

import (
	"errors"
	"fmt"
)

var ErrMissingDependency = errors.New("missing engine dependency")

// PersistenceError is the only error Run returns. The run it belongs to has
// already reached End, but its snapshot or audit record may be missing.
type PersistenceError struct {
	Op         string
	TargetURL  string
	WorkflowID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed for run %s of %s: %v", e.Op, e.WorkflowID, e.TargetURL, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) ErrorKind() string {
	return "persistence"
}

// IsPersistenceError checks if err carries a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError

	return errors.As(err, &pe)
}
