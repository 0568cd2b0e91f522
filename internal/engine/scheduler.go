package engine

import (
	"container/heap"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Scheduler owns a virtual clock and the queue of pending actions.
//
// Thread-safety model:
//   - ScheduleAt/Schedule/Cancel: safe from any goroutine, including from
//     inside an executing action
//   - Flush/Run: one caller at a time; actions run on the caller's goroutine
type Scheduler struct {
	clock  *Clock
	logger *slog.Logger

	mu    sync.Mutex
	queue actionQueue
	seq   int64

	// maxTicks bounds virtual time. Zero means unbounded.
	maxTicks  int64
	discarded int

	// maxActions bounds the actions one Flush executes. Zero means
	// unbounded.
	maxActions int

	running  atomic.Bool
	flushing atomic.Bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxTicks discards every action due after the given tick. Zero (the
// default) disables the bound.
func WithMaxTicks(n int64) Option {
	return func(s *Scheduler) {
		s.maxTicks = n
	}
}

// WithMaxActions makes Flush fail with an *ActionLimitError once a single
// drain has executed n actions. Zero (the default) disables the limit.
func WithMaxActions(n int) Option {
	return func(s *Scheduler) {
		s.maxActions = n
	}
}

// WithLogger sets the logger used for drain diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler with its clock at tick 0.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current virtual tick.
func (s *Scheduler) Now() int64 {
	return s.clock.Now()
}

// Clock exposes the scheduler's clock for read-only use.
func (s *Scheduler) Clock() *Clock {
	return s.clock
}

// MaxTicks returns the configured bound, or zero when unbounded.
func (s *Scheduler) MaxTicks() int64 {
	return s.maxTicks
}

// ScheduleAt enqueues fn to run at an absolute tick. Scheduling at the
// current tick is allowed; the action runs after everything already queued
// for that tick.
func (s *Scheduler) ScheduleAt(tick int64, fn func()) (*Action, error) {
	now := s.clock.Now()
	if tick < now {
		return nil, &ScheduleViolationError{Due: tick, Now: now}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	a := &Action{due: tick, seq: s.seq, fn: fn, owner: s}
	heap.Push(&s.queue, a)
	return a, nil
}

// Schedule enqueues fn to run delay ticks from now.
func (s *Scheduler) Schedule(delay int64, fn func()) (*Action, error) {
	return s.ScheduleAt(s.clock.Now()+delay, fn)
}

// Pending returns the number of queued actions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Discarded returns how many actions the tick bound has dropped so far.
func (s *Scheduler) Discarded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Run executes driver, which typically builds sources and expectations and
// schedules their initial actions, then drains the queue. A driver error is
// returned without draining.
func (s *Scheduler) Run(driver func() error) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if driver != nil {
		if err := driver(); err != nil {
			return err
		}
	}
	return s.Flush()
}

// Flush drains the queue in (tick, seq) order, advancing the clock to each
// action's tick before running it. Actions scheduled while draining join
// the same queue. When the tick bound is exceeded, the remaining actions are
// discarded; when the action limit is exceeded, Flush stops with an
// *ActionLimitError.
func (s *Scheduler) Flush() error {
	if !s.flushing.CompareAndSwap(false, true) {
		return ErrFlushing
	}
	defer s.flushing.Store(false)

	quota := newActionQuota(s.maxActions)
	executed := 0
	for {
		if err := s.admit(quota); err != nil {
			s.logger.Warn("action limit exceeded",
				"limit", s.maxActions,
				"tick", s.clock.Now())
			return err
		}
		a, fn, ok := s.next()
		if !ok {
			break
		}
		s.clock.advanceTo(a.due)
		if fn != nil {
			fn()
		}
		executed++
	}

	s.logger.Debug("scheduler drained",
		"executed", executed,
		"tick", s.clock.Now())
	return nil
}

// admit charges the quota for the next action, if there is one that next
// would run.
func (s *Scheduler) admit(q *actionQuota) error {
	s.mu.Lock()
	if len(s.queue) == 0 || (s.maxTicks > 0 && s.queue[0].due > s.maxTicks) {
		s.mu.Unlock()
		return nil
	}
	due := s.queue[0].due
	s.mu.Unlock()

	return q.check(due)
}

// next pops the earliest action, marks it executed and hands over its
// function. It returns false when the queue is empty or the remaining
// actions fall past the tick bound.
func (s *Scheduler) next() (*Action, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, nil, false
	}

	if s.maxTicks > 0 && s.queue[0].due > s.maxTicks {
		dropped := len(s.queue)
		for _, a := range s.queue {
			a.state = stateDiscarded
			a.fn = nil
			a.index = -1
		}
		s.queue = s.queue[:0]
		s.discarded += dropped

		s.logger.Warn("discarded actions past tick limit",
			"count", dropped,
			"max_ticks", s.maxTicks)
		return nil, nil, false
	}

	a := heap.Pop(&s.queue).(*Action)
	a.state = stateExecuted
	fn := a.fn
	a.fn = nil
	return a, fn, true
}
