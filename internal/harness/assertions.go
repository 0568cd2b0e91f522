package harness

import (
	"strings"

	"github.com/roach88/marbles/internal/marble"
)

// Expectation asserts on the frames a materialized stream produced. It is
// evaluated after the run drains.
type Expectation struct {
	ctx   *Context
	label string
	mat   *Materializer

	expected []marble.Frame
	values   map[string]any
	mode     marble.ErrorMatch
	set      bool
}

// Named replaces the default label used in failures and results.
func (e *Expectation) Named(label string) *Expectation {
	e.label = label
	return e
}

// ToBe sets the expected diagram. Error frames match any error payload.
func (e *Expectation) ToBe(marbles string, values ...map[string]any) {
	e.expect(marbles, firstValues(values), nil, marble.MatchAnyError)
}

// ToBeWithError sets the expected diagram with err as the payload of '#'
// frames. Payloads are compared with mode, or with the harness default
// when mode is omitted.
func (e *Expectation) ToBeWithError(marbles string, values map[string]any, err error, mode ...marble.ErrorMatch) {
	m := e.ctx.h.errorMatch
	if len(mode) > 0 {
		m = mode[0]
	}
	e.expect(marbles, values, err, m)
}

// ToBeFrames sets the expected frames directly.
func (e *Expectation) ToBeFrames(frames []marble.Frame, mode marble.ErrorMatch) {
	e.expected = append([]marble.Frame(nil), frames...)
	e.values = nil
	e.mode = mode
	e.set = true
}

func (e *Expectation) expect(marbles string, values map[string]any, err error, mode marble.ErrorMatch) {
	d := e.ctx.parse(marbles, values, err)
	e.expected = d.Frames
	e.values = values
	e.mode = mode
	e.set = true
}

func (e *Expectation) evaluate() (ExpectationResult, *AssertionError) {
	norm := e.ctx.h.normalize
	expected := normalizeFrames(e.expected, norm)
	actual := normalizeFrames(e.mat.Frames(), norm)

	res := ExpectationResult{
		Name:     e.label,
		Expected: expected,
		Actual:   actual,
		Window:   e.mat.Window(),
	}

	if !e.set {
		return res, &AssertionError{Label: e.label, Kind: FailureIncomplete, Actual: actual}
	}

	err := marble.Compare(expected, actual, e.mode)
	if err == nil {
		res.Pass = true
		return res, nil
	}

	values := normalizeValues(e.values, norm)
	mismatch, _ := err.(*marble.MismatchError)
	return res, &AssertionError{
		Label:           e.label,
		Kind:            FailureFrames,
		Mismatch:        mismatch,
		Expected:        expected,
		Actual:          actual,
		ExpectedDiagram: diagram(expected, values),
		ActualDiagram:   diagram(actual, values),
	}
}

// SubscriptionExpectation asserts on a source's subscription log.
type SubscriptionExpectation struct {
	ctx   *Context
	label string
	src   SubscriptionLog

	expected []marble.Window
	set      bool
}

// Named replaces the default label used in failures.
func (e *SubscriptionExpectation) Named(label string) *SubscriptionExpectation {
	e.label = label
	return e
}

// ToBe sets the expected windows, one subscription diagram per
// subscription. No arguments means the source was never subscribed.
func (e *SubscriptionExpectation) ToBe(marbles ...string) {
	windows := make([]marble.Window, 0, len(marbles))
	for _, m := range marbles {
		w, err := marble.ParseSubscription(m)
		if err != nil {
			e.ctx.fail(err)
		}
		windows = append(windows, w)
	}
	e.expected = windows
	e.set = true
}

func (e *SubscriptionExpectation) evaluate() *AssertionError {
	actual := e.src.Subscriptions()
	if !e.set {
		return &AssertionError{Label: e.label, Kind: FailureIncomplete, ActualWindows: actual}
	}

	err := marble.CompareSubscriptions(e.expected, actual)
	if err == nil {
		return nil
	}

	mismatch, _ := err.(*marble.MismatchError)
	return &AssertionError{
		Label:           e.label,
		Kind:            FailureSubscriptions,
		Mismatch:        mismatch,
		ExpectedWindows: e.expected,
		ActualWindows:   actual,
		ExpectedDiagram: windowsDiagram(e.expected),
		ActualDiagram:   windowsDiagram(actual),
	}
}

func (c *Context) evaluate() *Result {
	res := &Result{Pass: true}
	logger := c.h.logger

	for _, e := range c.expectations {
		er, failure := e.evaluate()
		res.Expectations = append(res.Expectations, er)
		logger.Debug("expectation evaluated", "label", e.label, "pass", failure == nil)
		if failure != nil {
			res.Failures = append(res.Failures, failure)
		}
	}

	for _, e := range c.subscriptions {
		failure := e.evaluate()
		logger.Debug("subscription expectation evaluated", "label", e.label, "pass", failure == nil)
		if failure != nil {
			res.Failures = append(res.Failures, failure)
		}
	}

	for _, src := range c.sources {
		res.Sources = append(res.Sources, SourceLog{Name: src.name, Windows: src.log.Subscriptions()})
	}

	res.Pass = len(res.Failures) == 0
	return res
}

func normalizeFrames(frames []marble.Frame, norm func(any) any) []marble.Frame {
	out := make([]marble.Frame, len(frames))
	for i, f := range frames {
		if f.Kind == marble.KindNext {
			f.Value = norm(f.Value)
		}
		out[i] = f
	}
	return out
}

func normalizeValues(values map[string]any, norm func(any) any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = norm(v)
	}
	return out
}

// diagram renders frames for a failure message, falling back to a frame
// list when no diagram can express them.
func diagram(frames []marble.Frame, values map[string]any) string {
	if len(frames) == 0 {
		return "(no frames)"
	}
	if d, err := marble.Render(frames, values); err == nil {
		return d
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func windowsDiagram(windows []marble.Window) string {
	if len(windows) == 0 {
		return "(no subscriptions)"
	}
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = marble.RenderSubscription(w)
	}
	return strings.Join(parts, ", ")
}
