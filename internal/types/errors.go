package types

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceAcquisition is returned when a Session cannot be acquired.
	ErrResourceAcquisition = errors.New("resource acquisition failed")
	// ErrExecution wraps any failure of a Strategy's retrieval.
	ErrExecution = errors.New("execution failed")
	// ErrCleanup marks a transient object that could not be dropped.
	ErrCleanup = errors.New("cleanup failed")
)

// TrialError describes a failed trial.
type TrialError struct {
	Kind     error // ErrResourceAcquisition or ErrExecution
	Strategy string
	Trial    int
	Err      error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("%s trial %d: %v: %v", e.Strategy, e.Trial, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *TrialError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// CleanupError is returned when a transient object survived the call that
// created it. It is non-fatal for the trial but must be surfaced.
type CleanupError struct {
	Object string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed for %s: %v", e.Object, e.Err)
}

// Is matches ErrCleanup.
func (e *CleanupError) Is(target error) bool {
	return target == ErrCleanup
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// Execution wraps err so that errors.Is(err, ErrExecution) holds.
// Nil stays nil and already-wrapped errors are returned unchanged.
func Execution(err error) error {
	if err == nil || errors.Is(err, ErrExecution) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExecution, err)
}

// IsCleanupOnly reports whether err carries cleanup failures and nothing else.
func IsCleanupOnly(err error) bool {
	if err == nil {
		return false
	}
	var ce *CleanupError
	return errors.As(err, &ce) && !errors.Is(err, ErrExecution)
}
