package testutil

import (
	"sync"

	"github.com/roach88/marbles/internal/marble"
)

// TickSource reports the current virtual tick. *engine.Scheduler and
// *ManualClock both satisfy it.
type TickSource interface {
	Now() int64
}

// Recorder is an observer that stores every notification it receives as a
// marble.Frame stamped with the tick source's current tick. It does not
// enforce the observable contract: frames after a terminal notification are
// recorded too, which lets tests assert that operators never emit them.
type Recorder struct {
	clock TickSource

	mu     sync.Mutex
	frames []marble.Frame
}

// NewRecorder creates a recorder reading ticks from clock.
func NewRecorder(clock TickSource) *Recorder {
	return &Recorder{clock: clock}
}

func (r *Recorder) Next(v any) {
	r.add(marble.Next(r.clock.Now(), v))
}

func (r *Recorder) Error(err error) {
	r.add(marble.Error(r.clock.Now(), err))
}

func (r *Recorder) Complete() {
	r.add(marble.Complete(r.clock.Now()))
}

func (r *Recorder) add(f marble.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

// Frames returns a copy of the recorded frames.
func (r *Recorder) Frames() []marble.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]marble.Frame(nil), r.frames...)
}

// Values returns the payloads of the recorded next frames.
func (r *Recorder) Values() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, f := range r.frames {
		if f.Kind == marble.KindNext {
			out = append(out, f.Value)
		}
	}
	return out
}

// Reset discards recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}
