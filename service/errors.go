package service

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned when a pipeline run is requested while
// another run holds the run lock. The existing run is left untouched and no
// new run record is created.
var ErrAlreadyRunning = errors.New("a pipeline run is already in progress")

// PersistenceError wraps a storage failure during load. It aborts the current
// run; batches committed before the failure stand.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
