package marble

import (
	"fmt"
	"math"
)

// Never marks a window bound that has not been reached: a subscription that is
// still active, or a subscription point that was never declared.
const Never int64 = math.MaxInt64

// Kind discriminates the three notification types a frame can carry.
type Kind int

const (
	// KindNext carries a value.
	KindNext Kind = iota + 1
	// KindError carries an error and terminates the sequence.
	KindError
	// KindComplete terminates the sequence without a payload.
	KindComplete
)

// String returns the lower-case kind name used in snapshots and CLI output.
func (k Kind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "next":
		return KindNext, true
	case "error":
		return KindError, true
	case "complete":
		return KindComplete, true
	}
	return 0, false
}

// Terminal reports whether the kind ends a sequence.
func (k Kind) Terminal() bool {
	return k == KindError || k == KindComplete
}

// Frame is one timestamped notification. Frames are values; once recorded
// they are never mutated.
type Frame struct {
	Tick  int64
	Kind  Kind
	Value any   // set for KindNext
	Err   error // set for KindError
}

// Next builds a value frame.
func Next(tick int64, v any) Frame {
	return Frame{Tick: tick, Kind: KindNext, Value: v}
}

// Error builds an error frame.
func Error(tick int64, err error) Frame {
	return Frame{Tick: tick, Kind: KindError, Err: err}
}

// Complete builds a completion frame.
func Complete(tick int64) Frame {
	return Frame{Tick: tick, Kind: KindComplete}
}

// String formats the frame for diagnostics, e.g. "tick=3 next 5".
func (f Frame) String() string {
	switch f.Kind {
	case KindNext:
		return fmt.Sprintf("tick=%d next %v", f.Tick, f.Value)
	case KindError:
		return fmt.Sprintf("tick=%d error %v", f.Tick, f.Err)
	default:
		return fmt.Sprintf("tick=%d %s", f.Tick, f.Kind)
	}
}

// Window is a subscription record: the tick a consumer subscribed and the
// tick it unsubscribed. Unsubscribe is Never while the subscription is active.
type Window struct {
	Subscribe   int64
	Unsubscribe int64
}

// Active reports whether the window has not been closed.
func (w Window) Active() bool {
	return w.Unsubscribe == Never
}

func (w Window) String() string {
	switch {
	case w.Subscribe == Never:
		return "never subscribed"
	case w.Unsubscribe == Never:
		return fmt.Sprintf("subscribed=%d unsubscribed=never", w.Subscribe)
	default:
		return fmt.Sprintf("subscribed=%d unsubscribed=%d", w.Subscribe, w.Unsubscribe)
	}
}

// Diagram is the parsed form of a marble pattern.
type Diagram struct {
	Frames []Frame
	// Window is set when the pattern declares a '^' subscription point.
	Window *Window
}

// Shift returns the frames relative to origin, dropping any frame that
// would land before it. Hot observables use this to anchor their timeline
// at the '^' marker.
func (d *Diagram) Shift(origin int64) []Frame {
	out := make([]Frame, 0, len(d.Frames))
	for _, f := range d.Frames {
		if f.Tick < origin {
			continue
		}
		f.Tick -= origin
		out = append(out, f)
	}
	return out
}
