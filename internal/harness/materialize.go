package harness

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/stream"
)

// Materializer subscribes to a stream under a scheduler and records each
// notification as a frame stamped with the tick it arrived at.
type Materializer struct {
	sched *engine.Scheduler

	mu     sync.Mutex
	frames []marble.Frame
	window marble.Window
	sub    stream.Subscription
	closed bool
}

// Materialize schedules a subscription to obs at window.Subscribe, or at
// the current tick when the window has no subscribe point, and an
// unsubscription at window.Unsubscribe when it has one. Nothing is recorded
// until the scheduler runs.
func Materialize(s *engine.Scheduler, obs stream.Observable, window marble.Window) (*Materializer, error) {
	m := &Materializer{
		sched:  s,
		window: marble.Window{Subscribe: marble.Never, Unsubscribe: marble.Never},
	}

	at := window.Subscribe
	if at == marble.Never {
		at = s.Now()
	}
	if _, err := s.ScheduleAt(at, func() { m.subscribe(obs) }); err != nil {
		return nil, errors.Wrap(err, "schedule subscription")
	}

	if window.Unsubscribe != marble.Never {
		if _, err := s.ScheduleAt(window.Unsubscribe, m.unsubscribe); err != nil {
			return nil, errors.Wrap(err, "schedule unsubscription")
		}
	}
	return m, nil
}

// Frames returns a copy of the recorded frames.
func (m *Materializer) Frames() []marble.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]marble.Frame(nil), m.frames...)
}

// Window returns the materializer's own subscription record. Subscribe is
// marble.Never until the scheduled subscription has happened.
func (m *Materializer) Window() marble.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window
}

func (m *Materializer) subscribe(obs stream.Observable) {
	m.mu.Lock()
	m.window.Subscribe = m.sched.Now()
	m.mu.Unlock()

	sub := obs.Subscribe(stream.ObserverFuncs{
		NextFunc: func(v any) {
			m.record(marble.Next(m.sched.Now(), v))
		},
		ErrorFunc: func(err error) {
			m.record(marble.Error(m.sched.Now(), err))
		},
		CompleteFunc: func() {
			m.record(marble.Complete(m.sched.Now()))
		},
	})

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
}

func (m *Materializer) unsubscribe() {
	m.mu.Lock()
	sub := m.sub
	already := m.closed
	m.closed = true
	if !already {
		m.window.Unsubscribe = m.sched.Now()
	}
	m.mu.Unlock()

	if !already && sub != nil {
		sub.Unsubscribe()
	}
}

func (m *Materializer) record(f marble.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.frames = append(m.frames, f)
	if f.Kind.Terminal() {
		m.closed = true
		m.window.Unsubscribe = f.Tick
	}
}
