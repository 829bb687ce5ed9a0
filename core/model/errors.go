package model

import "fmt"

// InvalidInputError reports malformed input detected before any expensive
// computation. It is never retried.
type InvalidInputError struct {
	Field  string
	Reason string
}

// NewInvalidInput builds an InvalidInputError for field.
func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// ModelFitError reports a surrogate that could not be trained into a usable
// model. Status carries the hyperparameter optimizer's termination status of
// the last attempt, when there was one.
type ModelFitError struct {
	Reason string
	Status string
	Err    error
}

func (e *ModelFitError) Error() string {
	msg := "surrogate fit: " + e.Reason
	if e.Status != "" {
		msg += " (optimizer status: " + e.Status + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelFitError) Unwrap() error { return e.Err }

// EvaluationError reports a failed ground-truth evaluation. Index is the
// position of the failing input within its batch.
type EvaluationError struct {
	Batch string
	Index int
	Err   error
}

func (e *EvaluationError) Error() string {
	if e.Batch != "" {
		return fmt.Sprintf("evaluation %s[%d] failed: %v", e.Batch, e.Index, e.Err)
	}
	return fmt.Sprintf("evaluation [%d] failed: %v", e.Index, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
