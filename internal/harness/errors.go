package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/marbles/internal/marble"
)

// Failure kinds reported by AssertionError.
const (
	FailureFrames        = "frames"
	FailureSubscriptions = "subscriptions"
	FailureIncomplete    = "incomplete"
)

// AssertionError reports one failed expectation. Both sides are rendered as
// diagrams where possible so the failure reads like the test that produced
// it.
type AssertionError struct {
	Label string
	Kind  string

	// Mismatch is the first divergence; nil for FailureIncomplete.
	Mismatch *marble.MismatchError

	Expected []marble.Frame
	Actual   []marble.Frame

	ExpectedWindows []marble.Window
	ActualWindows   []marble.Window

	ExpectedDiagram string
	ActualDiagram   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Mismatch == nil {
		fmt.Fprintf(&buf, "%s: %s", e.Label, e.Kind)
	} else {
		fmt.Fprintf(&buf, "%s: %v", e.Label, e.Mismatch)
	}
	if e.Kind == FailureIncomplete {
		return buf.String()
	}

	fmt.Fprintf(&buf, "\n  expected: %s", e.ExpectedDiagram)
	fmt.Fprintf(&buf, "\n  actual:   %s", e.ActualDiagram)
	return buf.String()
}

// Unwrap exposes the underlying mismatch.
func (e *AssertionError) Unwrap() error {
	if e.Mismatch == nil {
		return nil
	}
	return e.Mismatch
}

// Failures collects every failed expectation of a run.
type Failures struct {
	Errors []*AssertionError
}

func (f *Failures) Error() string {
	if len(f.Errors) == 1 {
		return f.Errors[0].Error()
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "%d expectations failed:", len(f.Errors))
	for _, e := range f.Errors {
		buf.WriteString("\n")
		buf.WriteString(e.Error())
	}
	return buf.String()
}

// RunError reports a run that could not finish: a malformed diagram, a
// scheduling violation or a scheduler misuse. No expectations were
// evaluated.
type RunError struct {
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("marble run aborted: %v", e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Cause supports github.com/pkg/errors.Cause.
func (e *RunError) Cause() error {
	return e.Err
}
