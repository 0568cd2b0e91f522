package harness

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
)

// Harness runs marble scenarios. Each call to Run or Execute gets a fresh
// scheduler, so one Harness can be reused across tests; it holds only
// configuration.
type Harness struct {
	maxTicks   int64
	maxActions int
	errorMatch marble.ErrorMatch
	normalize  func(any) any
	logger     *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithMaxTicks bounds virtual time for every run. Actions due later are
// discarded. Zero means unbounded.
func WithMaxTicks(n int64) Option {
	return func(h *Harness) {
		h.maxTicks = n
	}
}

// WithMaxActions aborts a run whose drain executes more than n actions,
// which catches sources that reschedule themselves forever. Zero means
// unbounded.
func WithMaxActions(n int) Option {
	return func(h *Harness) {
		h.maxActions = n
	}
}

// WithErrorMatch sets the mode ToBeWithError uses when the caller does not
// pass one. The default is marble.MatchMessage.
func WithErrorMatch(m marble.ErrorMatch) Option {
	return func(h *Harness) {
		h.errorMatch = m
	}
}

// WithNormalizer maps every payload, expected and actual, before frames are
// compared. Scenario runs use value.Normalize so that numbers decoded from
// YAML compare equal to numbers produced by operators.
func WithNormalizer(fn func(any) any) Option {
	return func(h *Harness) {
		h.normalize = fn
	}
}

// WithLogger sets the logger for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		errorMatch: marble.MatchMessage,
		normalize:  func(v any) any { return v },
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes fn against a fresh scheduler, drains it, then evaluates every
// expectation in declaration order.
//
// It returns nil when all expectations hold, a *Failures listing every
// mismatch, or a *RunError when the run was aborted (malformed diagram,
// scheduling into the past).
func (h *Harness) Run(fn func(*Context)) error {
	res, err := h.Execute(fn)
	if err != nil {
		return err
	}
	return res.Err()
}

// Execute is Run, but returns the full Result including the recorded
// frames and subscription logs.
func (h *Harness) Execute(fn func(*Context)) (res *Result, err error) {
	sched := engine.New(
		engine.WithMaxTicks(h.maxTicks),
		engine.WithMaxActions(h.maxActions),
		engine.WithLogger(h.logger),
	)
	c := newContext(h, sched)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		a, ok := r.(abort)
		if !ok {
			panic(r)
		}
		h.logger.Debug("run aborted", "error", a.err, "tick", sched.Now())
		res, err = nil, &RunError{Err: a.err}
	}()

	if err := sched.Run(func() error {
		fn(c)
		return nil
	}); err != nil {
		return nil, &RunError{Err: errors.Wrap(err, "run scheduler")}
	}

	res = c.evaluate()
	h.logger.Debug("run finished",
		"pass", res.Pass,
		"expectations", len(res.Expectations),
		"failures", len(res.Failures),
		"tick", sched.Now())
	return res, nil
}

// TB is the subset of testing.TB that RunT reports through.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// RunT runs fn with h and reports the outcome on t: each failed expectation
// through Errorf, an aborted run through Fatalf.
func RunT(t TB, h *Harness, fn func(*Context)) {
	t.Helper()

	err := h.Run(fn)
	if err == nil {
		return
	}

	var failures *Failures
	if errors.As(err, &failures) {
		for _, f := range failures.Errors {
			t.Errorf("%v", f)
		}
		return
	}
	t.Fatalf("%v", err)
}
