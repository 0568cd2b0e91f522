package marble

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefaultError is the payload of a '#' frame when the caller did not supply
// an error value.
var DefaultError = errors.New("error")

// ParseError reports a malformed marble diagram.
type ParseError struct {
	Pattern string
	// Pos is the rune offset of the offending character, or -1 when the
	// problem is not tied to one character (e.g. an unclosed group).
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("marble: %s in %q", e.Message, e.Pattern)
	}
	return fmt.Sprintf("marble: %s at position %d in %q", e.Message, e.Pos, e.Pattern)
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// MismatchError describes the first point where two recorded sequences
// diverge. For frame comparisons Expected/Actual are set (nil when that side
// ran out of frames); for subscription comparisons the window fields are.
type MismatchError struct {
	Index  int
	Reason string

	Expected *Frame
	Actual   *Frame

	ExpectedWindow *Window
	ActualWindow   *Window
}

func (e *MismatchError) Error() string {
	if e.ExpectedWindow != nil || e.ActualWindow != nil {
		return fmt.Sprintf("subscription %d: %s (expected %s, actual %s)",
			e.Index, e.Reason, describeWindow(e.ExpectedWindow), describeWindow(e.ActualWindow))
	}
	return fmt.Sprintf("frame %d: %s (expected %s, actual %s)",
		e.Index, e.Reason, describeFrame(e.Expected), describeFrame(e.Actual))
}

// IsMismatch reports whether err is, or wraps, a *MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

func describeFrame(f *Frame) string {
	if f == nil {
		return "nothing"
	}
	return f.String()
}

func describeWindow(w *Window) string {
	if w == nil {
		return "nothing"
	}
	return w.String()
}
