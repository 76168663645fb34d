// Package errs defines the error taxonomy shared across the pipeline:
// build-time configuration errors, critical execution errors that always
// abort the job, and recoverable step execution errors routed through the
// configured error policy.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Errors on building a pipeline DAG. All of them are configuration errors:
// they halt the build before any step runs and are never retried.
var (
	ErrStepNameRequired  = errors.New("step name must be specified")
	ErrStepNameDuplicate = errors.New("step name must be unique")
	ErrStepActionIsEmpty = errors.New("step action is required")
	ErrSelfDependency    = errors.New("step cannot depend on itself")
	ErrDuplicateEdge     = errors.New("dependency is declared twice")
	ErrCycleDetected     = errors.New("dependency would create a cycle")
	ErrDependencyUnknown = errors.New("dependency refers to an unknown step")
)

// Run-time errors.
var (
	// ErrActionNotFound is returned when a step names an action that is not
	// registered. It is a configuration error surfaced at dispatch time.
	ErrActionNotFound = errors.New("action is not registered")

	// ErrInvalidSource marks a data source as unusable. It is the critical
	// error category: every policy aborts the job on it.
	ErrInvalidSource = errors.New("invalid data source")

	// ErrStepTimeout is returned when a step exceeds its configured timeout.
	ErrStepTimeout = errors.New("step execution deadline exceeded")
)

// Exit codes derived from the error category, reported via the job report.
const (
	ExitSuccess       = 0
	ExitFailure       = 1
	ExitInvalidSource = 2
	ExitInvalidConfig = 6
	ExitTimeout       = 124
)

// ExitCode maps an error to the process exit code for the job report.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrStepTimeout):
		return ExitTimeout
	case errors.Is(err, ErrInvalidSource):
		return ExitInvalidSource
	case IsConfigError(err):
		return ExitInvalidConfig
	default:
		return ExitFailure
	}
}

// IsConfigError reports whether the error stems from an invalid pipeline
// or action configuration rather than from step execution.
func IsConfigError(err error) bool {
	for _, target := range []error{
		ErrStepNameRequired,
		ErrStepNameDuplicate,
		ErrStepActionIsEmpty,
		ErrSelfDependency,
		ErrDuplicateEdge,
		ErrCycleDetected,
		ErrDependencyUnknown,
		ErrActionNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCritical reports whether the error belongs to the critical category
// that aborts the job regardless of the active policy.
func IsCritical(err error) bool {
	return errors.Is(err, ErrInvalidSource)
}

// ErrorList collects multiple errors while building a pipeline.
type ErrorList []error

// Add appends an error to the list if it is non-nil.
func (e *ErrorList) Add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// Error implements the error interface. It returns all the errors
// separated by a semicolon.
func (e ErrorList) Error() string {
	errStrings := make([]string, len(e))
	for i, err := range e {
		errStrings[i] = err.Error()
	}
	return strings.Join(errStrings, "; ")
}

// Unwrap allows errors.Is to check against each error in the list.
func (e ErrorList) Unwrap() []error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// StepError associates an error with the step it occurred in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
