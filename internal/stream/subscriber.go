package stream

import "sync"

// State is the lifecycle state of a Subscriber.
type State int

const (
	// StateSubscribed accepts notifications.
	StateSubscribed State = iota + 1
	// StateCompleted is terminal: the producer completed.
	StateCompleted
	// StateErrored is terminal: the producer failed.
	StateErrored
	// StateUnsubscribed is terminal: the consumer cancelled.
	StateUnsubscribed
)

func (s State) String() string {
	switch s {
	case StateSubscribed:
		return "subscribed"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// Subscriber sits between a producer and an Observer and enforces the
// observable contract: after Error, Complete or Unsubscribe nothing more is
// delivered, and teardown logic runs exactly once.
//
// Notifications are delivered outside the internal lock, so observers may
// unsubscribe or schedule more work from inside a callback.
type Subscriber struct {
	dest Observer

	mu        sync.Mutex
	state     State
	teardowns []func()
}

// NewSubscriber wraps dest.
func NewSubscriber(dest Observer) *Subscriber {
	if dest == nil {
		dest = ObserverFuncs{}
	}
	return &Subscriber{dest: dest, state: StateSubscribed}
}

// Next forwards v unless the subscriber is closed.
func (s *Subscriber) Next(v any) {
	if s.Closed() {
		return
	}
	s.dest.Next(v)
}

// Error forwards err, then tears down. Ignored once closed.
func (s *Subscriber) Error(err error) {
	if !s.transition(StateErrored) {
		return
	}
	s.dest.Error(err)
	s.teardown()
}

// Complete forwards completion, then tears down. Ignored once closed.
func (s *Subscriber) Complete() {
	if !s.transition(StateCompleted) {
		return
	}
	s.dest.Complete()
	s.teardown()
}

// Unsubscribe stops delivery and runs teardowns. Idempotent.
func (s *Subscriber) Unsubscribe() {
	if !s.transition(StateUnsubscribed) {
		return
	}
	s.teardown()
}

// Closed reports whether the subscriber reached a terminal state.
func (s *Subscriber) Closed() bool {
	return s.State() != StateSubscribed
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Add registers fn to run on teardown. If the subscriber is already closed,
// fn runs immediately.
func (s *Subscriber) Add(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.state == StateSubscribed {
		s.teardowns = append(s.teardowns, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// AddSubscription unsubscribes sub when s tears down.
func (s *Subscriber) AddSubscription(sub Subscription) {
	if sub == nil {
		return
	}
	s.Add(sub.Unsubscribe)
}

func (s *Subscriber) transition(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubscribed {
		return false
	}
	s.state = to
	return true
}

func (s *Subscriber) teardown() {
	s.mu.Lock()
	fns := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
