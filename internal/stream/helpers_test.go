package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/testutil"
)

// timeline emits frames at their ticks relative to the subscribe tick.
func timeline(s *engine.Scheduler, frames ...marble.Frame) Observable {
	return ObservableFunc(func(sub *Subscriber) {
		for _, f := range frames {
			f := f
			a, err := s.Schedule(f.Tick, func() {
				switch f.Kind {
				case marble.KindNext:
					sub.Next(f.Value)
				case marble.KindError:
					sub.Error(f.Err)
				case marble.KindComplete:
					sub.Complete()
				}
			})
			if err != nil {
				sub.Error(err)
				return
			}
			sub.Add(func() { a.Cancel() })
		}
	})
}

// run subscribes rec to obs at tick 0 and drains the scheduler.
func run(t *testing.T, s *engine.Scheduler, obs Observable) *testutil.Recorder {
	t.Helper()
	rec := testutil.NewRecorder(s)
	require.NoError(t, s.Run(func() error {
		obs.Subscribe(rec)
		return nil
	}))
	return rec
}

func double(v any) (any, error) {
	return v.(int) * 2, nil
}
