package fulfillment

import (
	"errors"
	"fmt"
)

// Kind classifies a fulfillment failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindContention        Kind = "contention"
	KindTimeout           Kind = "timeout"
	KindStorage           Kind = "storage"
)

// ValidationError reports malformed input. Line is the zero-based position of the
// offending line, or -1 when the header is at fault.
type ValidationError struct {
	Line      int
	ProductID string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Line < 0 {
		return "validation error: " + e.Reason
	}

	return fmt.Sprintf("validation error: line %d: %s", e.Line, e.Reason)
}

// Error is the single error a fulfillment caller receives.
// State is the step that was running when the attempt aborted; Line is the
// zero-based failing line or -1.
type Error struct {
	Kind     Kind
	State    State
	Line     int
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("fulfillment %s in %s (line %d): %v", e.Kind, e.State, e.Line, e.Err)
	}

	return fmt.Sprintf("fulfillment %s in %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a fulfillment error, or "" for foreign errors.
func KindOf(err error) Kind {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Kind
	}

	return ""
}
