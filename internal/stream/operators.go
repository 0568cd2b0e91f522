package stream

import (
	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/engine"
)

// Scheduler is the part of engine.Scheduler that time-based operators
// need.
type Scheduler interface {
	Now() int64
	Schedule(delay int64, fn func()) (*engine.Action, error)
}

// Map applies fn to every value. An error from fn is sent downstream as an
// error notification and the source is unsubscribed.
func Map(fn func(v any) (any, error)) Operator {
	return func(src Observable) Observable {
		return ObservableFunc(func(sub *Subscriber) {
			upstream := src.Subscribe(ObserverFuncs{
				NextFunc: func(v any) {
					if sub.Closed() {
						return
					}
					out, err := fn(v)
					if err != nil {
						sub.Error(err)
						return
					}
					sub.Next(out)
				},
				ErrorFunc:    sub.Error,
				CompleteFunc: sub.Complete,
			})
			sub.AddSubscription(upstream)
		})
	}
}

// Filter forwards the values for which pred returns true.
func Filter(pred func(v any) (bool, error)) Operator {
	return func(src Observable) Observable {
		return ObservableFunc(func(sub *Subscriber) {
			upstream := src.Subscribe(ObserverFuncs{
				NextFunc: func(v any) {
					if sub.Closed() {
						return
					}
					ok, err := pred(v)
					if err != nil {
						sub.Error(err)
						return
					}
					if ok {
						sub.Next(v)
					}
				},
				ErrorFunc:    sub.Error,
				CompleteFunc: sub.Complete,
			})
			sub.AddSubscription(upstream)
		})
	}
}

// SwitchMap projects each value to an inner observable and mirrors only the
// most recent one; a new value unsubscribes the previous inner. The result
// completes once the source has completed and no inner is active.
func SwitchMap(project func(v any) (Observable, error)) Operator {
	return func(src Observable) Observable {
		return ObservableFunc(func(sub *Subscriber) {
			var (
				inner     Subscription
				innerLive bool
				outerDone bool
			)

			upstream := src.Subscribe(ObserverFuncs{
				NextFunc: func(v any) {
					if sub.Closed() {
						return
					}
					if inner != nil {
						inner.Unsubscribe()
						inner = nil
					}

					obs, err := project(v)
					if err != nil {
						sub.Error(err)
						return
					}

					innerLive = true
					current := obs.Subscribe(ObserverFuncs{
						NextFunc:  sub.Next,
						ErrorFunc: sub.Error,
						CompleteFunc: func() {
							innerLive = false
							inner = nil
							if outerDone {
								sub.Complete()
							}
						},
					})
					if innerLive {
						inner = current
					}
				},
				ErrorFunc: sub.Error,
				CompleteFunc: func() {
					outerDone = true
					if !innerLive {
						sub.Complete()
					}
				},
			})

			sub.Add(func() {
				if inner != nil {
					inner.Unsubscribe()
				}
			})
			sub.AddSubscription(upstream)
		})
	}
}

// Delay shifts every value by ticks on s. Errors pass through immediately;
// completion is held back until the last delayed value has been emitted.
func Delay(s Scheduler, ticks int64) Operator {
	return func(src Observable) Observable {
		return ObservableFunc(func(sub *Subscriber) {
			pending := make(map[*engine.Action]struct{})
			sourceDone := false

			upstream := src.Subscribe(ObserverFuncs{
				NextFunc: func(v any) {
					if sub.Closed() {
						return
					}
					var a *engine.Action
					a, err := s.Schedule(ticks, func() {
						delete(pending, a)
						sub.Next(v)
						if sourceDone && len(pending) == 0 {
							sub.Complete()
						}
					})
					if err != nil {
						sub.Error(errors.Wrap(err, "delay"))
						return
					}
					pending[a] = struct{}{}
				},
				ErrorFunc: sub.Error,
				CompleteFunc: func() {
					sourceDone = true
					if len(pending) == 0 {
						sub.Complete()
					}
				},
			})

			sub.Add(func() {
				for a := range pending {
					a.Cancel()
				}
				clear(pending)
			})
			sub.AddSubscription(upstream)
		})
	}
}

// Using subscribes to a resource for as long as the observable built by
// factory is subscribed. The resource is released on teardown.
func Using(resource func() Subscription, factory func(res Subscription) (Observable, error)) Observable {
	return ObservableFunc(func(sub *Subscriber) {
		res := resource()
		sub.AddSubscription(res)

		obs, err := factory(res)
		if err != nil {
			sub.Error(err)
			return
		}
		sub.AddSubscription(obs.Subscribe(sub))
	})
}
