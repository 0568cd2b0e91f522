package stream

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/testutil"
)

func TestMap(t *testing.T) {
	s := engine.New()
	rec := run(t, s, Pipe(Of(1, 2, 3), Map(double)))

	assert.Equal(t, []marble.Frame{
		marble.Next(0, 2), marble.Next(0, 4), marble.Next(0, 6), marble.Complete(0),
	}, rec.Frames())
}

func TestMap_ErrorUnsubscribesSource(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")

	sourceTornDown := int64(-1)
	src := ObservableFunc(func(sub *Subscriber) {
		sub.AddSubscription(timeline(s, marble.Next(1, 1), marble.Next(2, 3), marble.Next(3, 4)).Subscribe(sub))
		sub.Add(func() { sourceTornDown = s.Now() })
	})

	rec := run(t, s, Pipe(src, Map(func(v any) (any, error) {
		if v.(int) == 3 {
			return nil, boom
		}
		return v, nil
	})))

	assert.Equal(t, []marble.Frame{marble.Next(1, 1), marble.Error(2, boom)}, rec.Frames())
	assert.Equal(t, int64(2), sourceTornDown)
}

func TestFilter(t *testing.T) {
	s := engine.New()
	src := timeline(s, marble.Next(1, "a"), marble.Next(3, "b"), marble.Next(5, "c"), marble.Complete(7))

	rec := run(t, s, Pipe(src, Filter(func(v any) (bool, error) { return v == "c", nil })))

	assert.Equal(t, []marble.Frame{marble.Next(5, "c"), marble.Complete(7)}, rec.Frames())
}

func TestFilter_PredicateError(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")

	rec := run(t, s, Pipe(Of(1), Filter(func(any) (bool, error) { return false, boom })))
	assert.Equal(t, []marble.Frame{marble.Error(0, boom)}, rec.Frames())
}

func TestSwitchMap_ProjectError(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")

	rec := run(t, s, Pipe(timeline(s, marble.Next(0, "a")), SwitchMap(func(any) (Observable, error) {
		return nil, boom
	})))
	assert.Equal(t, []marble.Frame{marble.Error(0, boom)}, rec.Frames())
}

func TestSwitchMap_InnerThrow(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")

	rec := run(t, s, Pipe(Of("a"), SwitchMap(func(any) (Observable, error) {
		return Throw(boom), nil
	})))
	assert.Equal(t, []marble.Frame{marble.Error(0, boom)}, rec.Frames())
}

func TestSwitchMap_SwitchesToLatest(t *testing.T) {
	s := engine.New()
	outer := timeline(s, marble.Next(0, 1), marble.Next(5, 2), marble.Complete(6))

	rec := run(t, s, Pipe(outer, SwitchMap(func(v any) (Observable, error) {
		// Each inner emits v*10 ten ticks after it starts
		return timeline(s, marble.Next(10, v.(int)*10), marble.Complete(10)), nil
	})))

	// The first inner is unsubscribed at tick 5 before it can emit
	assert.Equal(t, []marble.Frame{marble.Next(15, 20), marble.Complete(15)}, rec.Frames())
}

func TestSwitchMap_CompletesWhenOuterAndInnerDone(t *testing.T) {
	s := engine.New()
	outer := timeline(s, marble.Next(0, 1), marble.Complete(1))

	rec := run(t, s, Pipe(outer, SwitchMap(func(v any) (Observable, error) {
		return timeline(s, marble.Next(3, v), marble.Complete(4)), nil
	})))

	assert.Equal(t, []marble.Frame{marble.Next(3, 1), marble.Complete(4)}, rec.Frames())
}

func TestDelay(t *testing.T) {
	s := engine.New()
	src := timeline(s, marble.Next(0, 1), marble.Next(2, 2), marble.Complete(3))

	rec := run(t, s, Pipe(src, Delay(s, 5)))

	assert.Equal(t, []marble.Frame{marble.Next(5, 1), marble.Next(7, 2), marble.Complete(7)}, rec.Frames())
}

func TestDelay_CompletesImmediatelyWhenIdle(t *testing.T) {
	s := engine.New()
	src := timeline(s, marble.Next(0, 1), marble.Complete(9))

	rec := run(t, s, Pipe(src, Delay(s, 5)))
	assert.Equal(t, []marble.Frame{marble.Next(5, 1), marble.Complete(9)}, rec.Frames())
}

func TestDelay_ErrorPassesThroughAndCancelsPending(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")
	src := timeline(s, marble.Next(0, 1), marble.Error(1, boom))

	rec := run(t, s, Pipe(src, Delay(s, 5)))

	assert.Equal(t, []marble.Frame{marble.Error(1, boom)}, rec.Frames())
	assert.Equal(t, 0, s.Pending())
}

func TestDelay_ThenMapThrows(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")

	rec := run(t, s, Pipe(Scheduled(s, 1, 2, 3, 4, 5), Delay(s, 500), Map(func(v any) (any, error) {
		if v.(int) == 3 {
			return nil, boom
		}
		return v, nil
	})))

	assert.Equal(t, []marble.Frame{
		marble.Next(500, 1), marble.Next(500, 2), marble.Error(500, boom),
	}, rec.Frames())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduled(t *testing.T) {
	s := engine.New()
	rec := run(t, s, Scheduled(s, "1"))
	assert.Equal(t, []marble.Frame{marble.Next(0, "1"), marble.Complete(0)}, rec.Frames())
}

func TestScheduled_StartsAtSubscribeTick(t *testing.T) {
	s := engine.New()
	rec := testutil.NewRecorder(s)

	_, err := s.ScheduleAt(4, func() { Scheduled(s, 1, 2).Subscribe(rec) })
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	assert.Equal(t, []marble.Frame{marble.Next(4, 1), marble.Next(4, 2), marble.Complete(4)}, rec.Frames())
}

func TestScheduled_UnsubscribeCancels(t *testing.T) {
	s := engine.New()
	rec := testutil.NewRecorder(s)

	require.NoError(t, s.Run(func() error {
		sub := Scheduled(s, 1, 2).Subscribe(rec)
		sub.Unsubscribe()
		return nil
	}))

	assert.Empty(t, rec.Frames())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduled_SingleTeardown(t *testing.T) {
	s := engine.New()
	var sub *Subscriber
	var counts []int

	require.NoError(t, s.Run(func() error {
		sub = Scheduled(s, 1, 2, 3, 4).Subscribe(ObserverFuncs{
			NextFunc: func(any) {
				sub.mu.Lock()
				counts = append(counts, len(sub.teardowns))
				sub.mu.Unlock()
			},
		}).(*Subscriber)
		return nil
	}))

	assert.Equal(t, []int{1, 1, 1, 1}, counts)
	assert.Equal(t, StateCompleted, sub.State())
}

func TestScheduled_UnsubscribeMidwayCancelsPendingStep(t *testing.T) {
	s := engine.New()
	rec := testutil.NewRecorder(s)

	require.NoError(t, s.Run(func() error {
		sub := Scheduled(s, 1, 2, 3).Subscribe(rec)
		_, err := s.Schedule(0, sub.Unsubscribe)
		return err
	}))

	assert.Equal(t, []marble.Frame{marble.Next(0, 1)}, rec.Frames())
	assert.Equal(t, 0, s.Pending())
}

func TestUsing(t *testing.T) {
	s := engine.New()
	released := int64(-1)

	obs := Using(
		func() Subscription {
			sub := NewSubscriber(nil)
			sub.Add(func() { released = s.Now() })
			return sub
		},
		func(Subscription) (Observable, error) {
			return timeline(s, marble.Next(3, "e"), marble.Complete(7)), nil
		},
	)

	rec := run(t, s, obs)
	assert.Equal(t, []marble.Frame{marble.Next(3, "e"), marble.Complete(7)}, rec.Frames())
	assert.Equal(t, int64(7), released, "resource is released when the stream ends")
}

func TestUsing_FactoryError(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")
	released := false

	obs := Using(
		func() Subscription {
			sub := NewSubscriber(nil)
			sub.Add(func() { released = true })
			return sub
		},
		func(Subscription) (Observable, error) { return nil, boom },
	)

	rec := run(t, s, obs)
	assert.Equal(t, []marble.Frame{marble.Error(0, boom)}, rec.Frames())
	assert.True(t, released)
}

func TestSources(t *testing.T) {
	s := engine.New()
	boom := errors.New("boom")

	assert.Equal(t, []marble.Frame{marble.Complete(0)}, run(t, s, Empty()).Frames())
	assert.Equal(t, []marble.Frame{marble.Error(0, boom)}, run(t, s, Throw(boom)).Frames())
	assert.Empty(t, run(t, s, Never()).Frames())
}
