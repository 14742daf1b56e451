package workflow

import (
	"errors"
	"fmt"
)

// ValidationError is malformed client input caught before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "invalid input: " + e.Message
}

// ValidationMessage is the user-facing text of the failure.
func (e *ValidationError) ValidationMessage() string { return e.Message }

var (
	// ErrNoActiveSession means neither a login nor an upload has established a session.
	ErrNoActiveSession = &ValidationError{Field: "session", Message: "No active session; upload a file or log in first"}
	// ErrEmptyTargetColumn means the analysis form has no target column.
	ErrEmptyTargetColumn = &ValidationError{Field: "target_column", Message: "Target column is required"}
	// ErrStale reports that the active session or dataset changed while a
	// request was in flight; its result was dropped.
	ErrStale = errors.New("active session or dataset changed; result discarded")
)

// StepError wraps the failure of one analysis step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s analysis: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }
