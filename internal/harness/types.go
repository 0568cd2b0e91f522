package harness

import "github.com/roach88/marbles/internal/marble"

// Result is the outcome of one run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool

	// Expectations holds the recorded frames of each ExpectObservable call,
	// in declaration order.
	Expectations []ExpectationResult

	// Sources holds the subscription log of every cold and hot source
	// created during the run, in creation order.
	Sources []SourceLog

	// Failures lists every failed expectation, in declaration order.
	Failures []*AssertionError
}

// ExpectationResult is what one materializer observed.
type ExpectationResult struct {
	Name     string
	Expected []marble.Frame
	Actual   []marble.Frame
	Window   marble.Window
	Pass     bool
}

// SourceLog is the subscription log of one source.
type SourceLog struct {
	Name    string
	Windows []marble.Window
}

// Err returns nil for a passing result and a *Failures otherwise.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &Failures{Errors: append([]*AssertionError(nil), r.Failures...)}
}

// Source returns the log of the named source.
func (r *Result) Source(name string) (SourceLog, bool) {
	for _, s := range r.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceLog{}, false
}
