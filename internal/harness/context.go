package harness

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/stream"
)

// abort carries a fatal error out of the driver or a scheduled action up to
// Execute, which turns it into a *RunError.
type abort struct {
	err error
}

// SubscriptionLog is implemented by sources that record the windows during
// which they were subscribed.
type SubscriptionLog interface {
	Subscriptions() []marble.Window
}

// Context is handed to the driver function of a run. It creates marble
// sources and registers expectations against the run's scheduler.
//
// A Context is valid only for the duration of the run that created it.
type Context struct {
	h     *Harness
	sched *engine.Scheduler

	sources       []namedLog
	expectations  []*Expectation
	subscriptions []*SubscriptionExpectation
}

type namedLog struct {
	name string
	log  SubscriptionLog
}

func newContext(h *Harness, sched *engine.Scheduler) *Context {
	return &Context{h: h, sched: sched}
}

// Scheduler returns the run's scheduler, for operators such as stream.Delay.
func (c *Context) Scheduler() *engine.Scheduler {
	return c.sched
}

// Now returns the current virtual tick.
func (c *Context) Now() int64 {
	return c.sched.Now()
}

// Flush drains everything scheduled so far. Expectations are still
// evaluated only once the run ends.
func (c *Context) Flush() {
	if err := c.sched.Flush(); err != nil {
		c.fail(errors.Wrap(err, "flush"))
	}
}

// Cold creates a source that replays the diagram from the tick each
// subscriber subscribes at. values is optional; without it each value
// character is its own string payload.
func (c *Context) Cold(marbles string, values ...map[string]any) *ColdObservable {
	return c.ColdWithError(marbles, firstValues(values), nil)
}

// ColdWithError is Cold with an explicit payload for '#' frames.
func (c *Context) ColdWithError(marbles string, values map[string]any, err error) *ColdObservable {
	d := c.parse(marbles, values, err)
	if d.Window != nil {
		c.fail(errors.Errorf("cold observable %q cannot have a subscription point", marbles))
	}

	cold := newCold(c.sched, d.Frames)
	cold.ctx = c
	cold.name = fmt.Sprintf("cold-%d", len(c.sources)+1)
	c.sources = append(c.sources, namedLog{name: cold.name, log: cold})
	return cold
}

// Hot creates a source whose frames are scheduled now, at ticks relative
// to the diagram's '^' marker (or its first character), and multicast to
// whoever is subscribed when they fire.
func (c *Context) Hot(marbles string, values ...map[string]any) *HotObservable {
	return c.HotWithError(marbles, firstValues(values), nil)
}

// HotWithError is Hot with an explicit payload for '#' frames.
func (c *Context) HotWithError(marbles string, values map[string]any, err error) *HotObservable {
	d := c.parse(marbles, values, err)

	hot, serr := newHot(c.sched, d)
	if serr != nil {
		c.fail(serr)
	}
	hot.ctx = c
	hot.name = fmt.Sprintf("hot-%d", len(c.sources)+1)
	c.sources = append(c.sources, namedLog{name: hot.name, log: hot})
	return hot
}

// ExpectObservable materializes obs and returns an expectation to complete
// with ToBe. The optional subscription diagram controls when the
// materializer subscribes ('^') and unsubscribes ('!'); by default it
// subscribes at the current tick and stays subscribed.
func (c *Context) ExpectObservable(obs stream.Observable, subscriptionMarbles ...string) *Expectation {
	window := marble.Window{Subscribe: marble.Never, Unsubscribe: marble.Never}
	if len(subscriptionMarbles) > 0 {
		w, err := marble.ParseSubscription(subscriptionMarbles[0])
		if err != nil {
			c.fail(err)
		}
		window = w
	}

	m, err := Materialize(c.sched, obs, window)
	if err != nil {
		c.fail(err)
	}

	e := &Expectation{
		ctx:   c,
		label: fmt.Sprintf("expectObservable #%d", len(c.expectations)+1),
		mat:   m,
	}
	c.expectations = append(c.expectations, e)
	return e
}

// ExpectSubscriptions registers an expectation on src's subscription log.
// The log is read when the run ends.
func (c *Context) ExpectSubscriptions(src SubscriptionLog) *SubscriptionExpectation {
	e := &SubscriptionExpectation{
		ctx:   c,
		label: fmt.Sprintf("expectSubscriptions #%d", len(c.subscriptions)+1),
		src:   src,
	}
	c.subscriptions = append(c.subscriptions, e)
	return e
}

// rename updates the label a source is reported under.
func (c *Context) rename(log SubscriptionLog, name string) {
	for i := range c.sources {
		if c.sources[i].log == log {
			c.sources[i].name = name
		}
	}
}

func (c *Context) parse(marbles string, values map[string]any, err error) *marble.Diagram {
	d, perr := marble.Parse(marbles, marble.WithValues(values), marble.WithError(err))
	if perr != nil {
		c.fail(perr)
	}
	return d
}

func (c *Context) fail(err error) {
	panic(abort{err: err})
}

func firstValues(values []map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
