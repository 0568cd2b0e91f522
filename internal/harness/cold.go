package harness

import (
	"sync"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/stream"
)

// ColdObservable replays its frames for every subscriber, offset by the
// tick of that subscription. Each subscription is logged as a window that
// closes when the subscriber unsubscribes or the frames end in a terminal
// notification.
type ColdObservable struct {
	name   string
	ctx    *Context
	sched  *engine.Scheduler
	frames []marble.Frame

	mu   sync.Mutex
	subs []marble.Window
}

func newCold(sched *engine.Scheduler, frames []marble.Frame) *ColdObservable {
	return &ColdObservable{sched: sched, frames: frames}
}

// Named sets the label used for this source in results and snapshots.
func (o *ColdObservable) Named(name string) *ColdObservable {
	o.name = name
	if o.ctx != nil {
		o.ctx.rename(o, name)
	}
	return o
}

// Name returns the source label.
func (o *ColdObservable) Name() string {
	return o.name
}

// Frames returns the parsed frames, relative to a subscription at tick 0.
func (o *ColdObservable) Frames() []marble.Frame {
	return append([]marble.Frame(nil), o.frames...)
}

// Subscribe schedules every frame at subscribe tick + frame tick. A frame
// that cannot be scheduled aborts the run.
func (o *ColdObservable) Subscribe(obs stream.Observer) stream.Subscription {
	sub := stream.NewSubscriber(obs)
	start := o.sched.Now()
	idx := o.logSubscribe(start)

	actions := make([]*engine.Action, 0, len(o.frames))
	for _, f := range o.frames {
		f := f
		a, err := o.sched.ScheduleAt(start+f.Tick, func() { emit(sub, f) })
		if err != nil {
			if o.ctx != nil {
				o.ctx.fail(err)
			}
			sub.Error(err)
			break
		}
		actions = append(actions, a)
	}

	sub.Add(func() {
		for _, a := range actions {
			a.Cancel()
		}
		o.logUnsubscribe(idx, o.sched.Now())
	})
	return sub
}

// Subscriptions returns a copy of the subscription log.
func (o *ColdObservable) Subscriptions() []marble.Window {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]marble.Window(nil), o.subs...)
}

func (o *ColdObservable) logSubscribe(tick int64) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, marble.Window{Subscribe: tick, Unsubscribe: marble.Never})
	return len(o.subs) - 1
}

func (o *ColdObservable) logUnsubscribe(idx int, tick int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs[idx].Unsubscribe == marble.Never {
		o.subs[idx].Unsubscribe = tick
	}
}

// emit delivers one frame as the matching notification.
func emit(obs stream.Observer, f marble.Frame) {
	switch f.Kind {
	case marble.KindNext:
		obs.Next(f.Value)
	case marble.KindError:
		obs.Error(f.Err)
	case marble.KindComplete:
		obs.Complete()
	}
}
