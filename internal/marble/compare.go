package marble

import (
	"reflect"

	"github.com/pkg/errors"
)

// ErrorMatch selects how error payloads are compared.
type ErrorMatch int

const (
	// MatchAnyError treats any two error frames at the same tick as equal.
	MatchAnyError ErrorMatch = iota
	// MatchMessage compares err.Error() strings.
	MatchMessage
	// MatchDeep requires errors.Is or reflect.DeepEqual to hold.
	MatchDeep
)

// String returns the configuration name of the mode.
func (m ErrorMatch) String() string {
	switch m {
	case MatchAnyError:
		return "any"
	case MatchMessage:
		return "message"
	case MatchDeep:
		return "deep"
	default:
		return "unknown"
	}
}

// ParseErrorMatch is the inverse of ErrorMatch.String.
func ParseErrorMatch(s string) (ErrorMatch, error) {
	switch s {
	case "any":
		return MatchAnyError, nil
	case "message", "":
		return MatchMessage, nil
	case "deep":
		return MatchDeep, nil
	}
	return 0, errors.Errorf("unknown error match mode %q (want any, message or deep)", s)
}

// Compare succeeds iff expected and actual have the same length and every
// pair of frames agrees on tick, kind and payload. The first divergence is
// returned as a *MismatchError.
func Compare(expected, actual []Frame, mode ErrorMatch) error {
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}

	for i := 0; i < n; i++ {
		if i >= len(actual) {
			e := expected[i]
			return &MismatchError{Index: i, Reason: "missing frame", Expected: &e}
		}
		if i >= len(expected) {
			a := actual[i]
			return &MismatchError{Index: i, Reason: "unexpected frame", Actual: &a}
		}

		e, a := expected[i], actual[i]
		if reason := diffFrame(e, a, mode); reason != "" {
			return &MismatchError{Index: i, Reason: reason, Expected: &e, Actual: &a}
		}
	}
	return nil
}

func diffFrame(e, a Frame, mode ErrorMatch) string {
	switch {
	case e.Tick != a.Tick:
		return "tick differs"
	case e.Kind != a.Kind:
		return "kind differs"
	case e.Kind == KindNext && !reflect.DeepEqual(e.Value, a.Value):
		return "value differs"
	case e.Kind == KindError && !errorsMatch(e.Err, a.Err, mode):
		return "error differs"
	}
	return ""
}

func errorsMatch(expected, actual error, mode ErrorMatch) bool {
	switch mode {
	case MatchMessage:
		if expected == nil || actual == nil {
			return expected == actual
		}
		return expected.Error() == actual.Error()
	case MatchDeep:
		return errors.Is(actual, expected) || reflect.DeepEqual(expected, actual)
	default:
		return true
	}
}

// CompareSubscriptions compares two subscription logs window by window.
func CompareSubscriptions(expected, actual []Window) error {
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}

	for i := 0; i < n; i++ {
		switch {
		case i >= len(actual):
			e := expected[i]
			return &MismatchError{Index: i, Reason: "missing subscription", ExpectedWindow: &e}
		case i >= len(expected):
			a := actual[i]
			return &MismatchError{Index: i, Reason: "unexpected subscription", ActualWindow: &a}
		case expected[i].Subscribe != actual[i].Subscribe:
			e, a := expected[i], actual[i]
			return &MismatchError{Index: i, Reason: "subscribe tick differs", ExpectedWindow: &e, ActualWindow: &a}
		case expected[i].Unsubscribe != actual[i].Unsubscribe:
			e, a := expected[i], actual[i]
			return &MismatchError{Index: i, Reason: "unsubscribe tick differs", ExpectedWindow: &e, ActualWindow: &a}
		}
	}
	return nil
}
