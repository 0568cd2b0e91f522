package stream

import (
	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/engine"
)

// Scheduled emits values one per action on s, all at the subscribe tick,
// then completes in a final action.
func Scheduled(s Scheduler, values ...any) Observable {
	return ObservableFunc(func(sub *Subscriber) {
		var current *engine.Action
		sub.Add(func() {
			if current != nil {
				current.Cancel()
			}
		})
		if sub.Closed() {
			return
		}

		var step func(i int)
		step = func(i int) {
			if sub.Closed() {
				return
			}
			if i == len(values) {
				sub.Complete()
				return
			}
			sub.Next(values[i])
			if sub.Closed() {
				return
			}

			a, err := s.Schedule(0, func() { step(i + 1) })
			if err != nil {
				sub.Error(errors.Wrap(err, "scheduled"))
				return
			}
			current = a
		}

		a, err := s.Schedule(0, func() { step(0) })
		if err != nil {
			sub.Error(errors.Wrap(err, "scheduled"))
			return
		}
		current = a
	})
}

// Of emits values synchronously on subscribe, then completes.
func Of(values ...any) Observable {
	return ObservableFunc(func(sub *Subscriber) {
		for _, v := range values {
			if sub.Closed() {
				return
			}
			sub.Next(v)
		}
		sub.Complete()
	})
}

// Throw errors synchronously on subscribe.
func Throw(err error) Observable {
	return ObservableFunc(func(sub *Subscriber) {
		sub.Error(err)
	})
}

// Empty completes synchronously on subscribe.
func Empty() Observable {
	return ObservableFunc(func(sub *Subscriber) {
		sub.Complete()
	})
}

// Never neither emits nor terminates.
func Never() Observable {
	return ObservableFunc(func(*Subscriber) {})
}
