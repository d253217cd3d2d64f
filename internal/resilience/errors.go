package resilience

import (
	"errors"
	"fmt"
)

var (
	ErrExecutionFailed = errors.New("execution failed")
	ErrFailoverFailed  = errors.New("failover failed")
	ErrCircuitOpen     = errors.New("circuit open")
)

// ExecutionError reports a service that failed every attempt.
type ExecutionError struct {
	ServiceID string
	Attempts  int
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("service %s failed after %d attempt(s): %v", e.ServiceID, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrExecutionFailed, e.Err} }

// FailoverError reports a failed fallback dispatch. Err is the fallback's
// error; the primary's error is not carried.
type FailoverError struct {
	PrimaryID  string
	FallbackID string
	Err        error
}

func (e *FailoverError) Error() string {
	return fmt.Sprintf("failover from %s to %s failed: %v", e.PrimaryID, e.FallbackID, e.Err)
}

func (e *FailoverError) Unwrap() []error { return []error{ErrFailoverFailed, e.Err} }
