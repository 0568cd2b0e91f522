package harness

import (
	"sync"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/stream"
)

// HotObservable emits its frames at fixed ticks regardless of who is
// listening. Frames are anchored at the diagram's '^' marker, which maps to
// the tick the observable was created at; frames before it are dropped.
//
// Subscribers only see frames that fire while they are subscribed. A
// subscriber arriving after a terminal frame receives that terminal
// notification immediately.
type HotObservable struct {
	name   string
	ctx    *Context
	sched  *engine.Scheduler
	frames []marble.Frame

	mu        sync.Mutex
	observers []*hotObserver
	subs      []marble.Window
	terminal  *marble.Frame
}

type hotObserver struct {
	sub *stream.Subscriber
	idx int
}

func newHot(sched *engine.Scheduler, d *marble.Diagram) (*HotObservable, error) {
	origin := int64(0)
	if d.Window != nil {
		origin = d.Window.Subscribe
	}

	o := &HotObservable{sched: sched, frames: d.Shift(origin)}
	start := sched.Now()
	for _, f := range o.frames {
		f := f
		if _, err := sched.ScheduleAt(start+f.Tick, func() { o.fire(f) }); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Named sets the label used for this source in results and snapshots.
func (o *HotObservable) Named(name string) *HotObservable {
	o.name = name
	if o.ctx != nil {
		o.ctx.rename(o, name)
	}
	return o
}

// Name returns the source label.
func (o *HotObservable) Name() string {
	return o.name
}

// Frames returns the frames relative to the creation tick.
func (o *HotObservable) Frames() []marble.Frame {
	return append([]marble.Frame(nil), o.frames...)
}

// Subscribe attaches obs to the live stream.
func (o *HotObservable) Subscribe(obs stream.Observer) stream.Subscription {
	sub := stream.NewSubscriber(obs)
	now := o.sched.Now()

	o.mu.Lock()
	o.subs = append(o.subs, marble.Window{Subscribe: now, Unsubscribe: marble.Never})
	ho := &hotObserver{sub: sub, idx: len(o.subs) - 1}
	terminal := o.terminal
	if terminal == nil {
		o.observers = append(o.observers, ho)
	}
	o.mu.Unlock()

	sub.Add(func() { o.detach(ho) })
	if terminal != nil {
		emit(sub, *terminal)
	}
	return sub
}

// Subscriptions returns a copy of the subscription log.
func (o *HotObservable) Subscriptions() []marble.Window {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]marble.Window(nil), o.subs...)
}

func (o *HotObservable) fire(f marble.Frame) {
	o.mu.Lock()
	if o.terminal != nil {
		o.mu.Unlock()
		return
	}
	if f.Kind.Terminal() {
		o.terminal = &f
	}
	targets := append([]*hotObserver(nil), o.observers...)
	o.mu.Unlock()

	for _, ho := range targets {
		emit(ho.sub, f)
	}
}

func (o *HotObservable) detach(ho *hotObserver) {
	now := o.sched.Now()

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, cur := range o.observers {
		if cur == ho {
			o.observers = append(o.observers[:i], o.observers[i+1:]...)
			break
		}
	}
	if o.subs[ho.idx].Unsubscribe == marble.Never {
		o.subs[ho.idx].Unsubscribe = now
	}
}
