package harness

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/engine"
	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/stream"
	"github.com/roach88/marbles/internal/value"
)

func double(v any) (any, error) {
	return v.(int) * 2, nil
}

func equals(want any) func(any) (bool, error) {
	return func(v any) (bool, error) { return v == want, nil }
}

func TestRun_ColdSourceMatchesItsOwnDiagram(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		source := c.Cold("-a-|")

		c.ExpectObservable(source).ToBe("   -a-|")
		c.ExpectSubscriptions(source).ToBe("^--!")
	})
}

func TestRun_ScheduledSourceMatchesColdDiagram(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		source := stream.Scheduled(c.Scheduler(), "1")
		marbleSource := c.Cold("(1|)")

		c.ExpectObservable(source).ToBe("(1|)")
		c.ExpectObservable(marbleSource).ToBe("(1|)")
		c.ExpectSubscriptions(marbleSource).ToBe("(^!)")
	})
}

func TestRun_PipeMapOverColdSource(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		source := c.Cold("-a-|", map[string]any{"a": 5})
		result := stream.Pipe(source, stream.Map(double))

		c.ExpectObservable(result).ToBe("-x-|", map[string]any{"x": 10})
		c.ExpectSubscriptions(source).ToBe("^--!")
	})
}

func TestRun_PipeMapOverScheduledSource(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		source := stream.Scheduled(c.Scheduler(), 5)
		marbleSource := c.Cold("(a|)", map[string]any{"a": 10})
		result := stream.Pipe(source, stream.Map(double))

		c.ExpectObservable(result).ToBe("(x|)", map[string]any{"x": 10})
		c.ExpectObservable(marbleSource).ToBe("(x|)", map[string]any{"x": 10})
		c.ExpectSubscriptions(marbleSource).ToBe("(^!)")
	})
}

func TestRun_SwitchMapError(t *testing.T) {
	boom := errors.New("boom")

	RunT(t, New(), func(c *Context) {
		source := c.Cold("a")
		result := stream.Pipe(source, stream.SwitchMap(func(any) (stream.Observable, error) {
			return nil, boom
		}))

		c.ExpectObservable(result).ToBeWithError("#", nil, errors.New("boom"))
		c.ExpectSubscriptions(source).ToBe("(^!)")
	})
}

func TestRun_DelayThenError(t *testing.T) {
	boom := errors.New("boom")
	failOnThree := stream.Map(func(v any) (any, error) {
		if v == 3 {
			return nil, boom
		}
		return v, nil
	})

	RunT(t, New(), func(c *Context) {
		source := stream.Scheduled(c.Scheduler(), 1, 2, 3, 4, 5)
		marbleSource := c.Cold("(abcde)", map[string]any{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5})
		result := func(obs stream.Observable) stream.Observable {
			return stream.Pipe(obs, stream.Delay(c.Scheduler(), 500), failOnThree)
		}

		expected := "500ms (a-b-#)"
		values := map[string]any{"a": 1, "b": 2}
		c.ExpectObservable(result(source)).ToBeWithError(expected, values, boom)
		c.ExpectObservable(result(marbleSource)).ToBeWithError(expected, values, boom)
		c.ExpectSubscriptions(marbleSource).ToBe("^   499ms   !")
	})
}

func TestRun_UsingKeepsOneSubscription(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		source1 := c.Cold("-a-b-c-|")
		source2 := c.Cold("-d-e-f-|")

		result1 := stream.Pipe(source1, stream.Filter(equals("c")))
		result2 := stream.Using(
			func() stream.Subscription { return result1.Subscribe(nil) },
			func(stream.Subscription) (stream.Observable, error) {
				return stream.Pipe(source2, stream.Filter(equals("e"))), nil
			},
		)

		c.ExpectObservable(result1).ToBe("-----c-|")
		c.ExpectObservable(result2).ToBe("---e---|")
		c.ExpectSubscriptions(source2).ToBe("^------!")
	})
}

func TestExecute_ReportsFramesAndSources(t *testing.T) {
	res, err := New().Execute(func(c *Context) {
		src := c.Cold("-a-|").Named("letters")
		c.ExpectObservable(src).Named("echo").ToBe("-a-|")
	})
	require.NoError(t, err)
	require.True(t, res.Pass)
	require.NoError(t, res.Err())

	require.Len(t, res.Expectations, 1)
	exp := res.Expectations[0]
	assert.Equal(t, "echo", exp.Name)
	assert.True(t, exp.Pass)
	assert.Equal(t, []marble.Frame{marble.Next(1, "a"), marble.Complete(3)}, exp.Actual)
	assert.Equal(t, marble.Window{Subscribe: 0, Unsubscribe: 3}, exp.Window)

	log, ok := res.Source("letters")
	require.True(t, ok)
	assert.Equal(t, []marble.Window{{Subscribe: 0, Unsubscribe: 3}}, log.Windows)

	_, ok = res.Source("missing")
	assert.False(t, ok)
}

func TestRun_FrameMismatch(t *testing.T) {
	err := New().Run(func(c *Context) {
		c.ExpectObservable(c.Cold("-a-|")).ToBe("-a--|")
	})
	require.Error(t, err)

	var failures *Failures
	require.True(t, errors.As(err, &failures))
	require.Len(t, failures.Errors, 1)

	f := failures.Errors[0]
	assert.Equal(t, FailureFrames, f.Kind)
	assert.Equal(t, "expectObservable #1", f.Label)
	require.NotNil(t, f.Mismatch)
	assert.Equal(t, 1, f.Mismatch.Index)
	assert.Equal(t, "tick differs", f.Mismatch.Reason)
	assert.Equal(t, "-a--|", f.ExpectedDiagram)
	assert.Equal(t, "-a-|", f.ActualDiagram)

	msg := err.Error()
	assert.Contains(t, msg, "expectObservable #1: frame 1: tick differs")
	assert.Contains(t, msg, "expected: -a--|")
	assert.Contains(t, msg, "actual:   -a-|")
	assert.True(t, marble.IsMismatch(f))
}

func TestRun_ValueMismatchRendersWithExpectedLabels(t *testing.T) {
	err := New().Run(func(c *Context) {
		src := c.Cold("-a-|", map[string]any{"a": 1})
		c.ExpectObservable(src).ToBe("-x-|", map[string]any{"x": 2, "y": 1})
	})

	var failures *Failures
	require.True(t, errors.As(err, &failures))
	f := failures.Errors[0]
	assert.Equal(t, "value differs", f.Mismatch.Reason)
	assert.Equal(t, "-y-|", f.ActualDiagram)
}

func TestRun_SubscriptionMismatch(t *testing.T) {
	err := New().Run(func(c *Context) {
		src := c.Cold("-a-|")
		c.ExpectObservable(src).ToBe("-a-|")
		c.ExpectSubscriptions(src).Named("src subs").ToBe("^-!")
	})

	var failures *Failures
	require.True(t, errors.As(err, &failures))
	require.Len(t, failures.Errors, 1)

	f := failures.Errors[0]
	assert.Equal(t, FailureSubscriptions, f.Kind)
	assert.Equal(t, "src subs", f.Label)
	assert.Equal(t, "unsubscribe tick differs", f.Mismatch.Reason)
	assert.Equal(t, "^-!", f.ExpectedDiagram)
	assert.Equal(t, "^--!", f.ActualDiagram)
}

func TestRun_AllFailuresReportedInOrder(t *testing.T) {
	err := New().Run(func(c *Context) {
		c.ExpectObservable(c.Cold("a|")).ToBe("b|")
		c.ExpectObservable(c.Cold("a|")).ToBe("a|")
		c.ExpectObservable(c.Cold("a|")).ToBe("a-|")
	})

	var failures *Failures
	require.True(t, errors.As(err, &failures))
	require.Len(t, failures.Errors, 2)
	assert.Equal(t, "expectObservable #1", failures.Errors[0].Label)
	assert.Equal(t, "expectObservable #3", failures.Errors[1].Label)
	assert.Contains(t, err.Error(), "2 expectations failed")
}

func TestRun_ExpectationWithoutToBe(t *testing.T) {
	err := New().Run(func(c *Context) {
		c.ExpectObservable(c.Cold("a|"))
	})

	var failures *Failures
	require.True(t, errors.As(err, &failures))
	assert.Equal(t, FailureIncomplete, failures.Errors[0].Kind)
	assert.Equal(t, "expectObservable #1: incomplete", failures.Errors[0].Error())
}

func TestRun_MalformedDiagramAborts(t *testing.T) {
	tests := []struct {
		name   string
		driver func(c *Context)
	}{
		{"cold", func(c *Context) { c.Cold("-a-(") }},
		{"expected", func(c *Context) { c.ExpectObservable(c.Cold("a")).ToBe("a)") }},
		{"subscription", func(c *Context) { c.ExpectObservable(c.Cold("a"), "^-a") }},
		{"subscription log", func(c *Context) { c.ExpectSubscriptions(c.Cold("a")).ToBe("!") }},
		{"tick overflow", func(c *Context) { c.ExpectObservable(c.Cold("9223372036854775807ms a")).ToBe("#") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Run(tt.driver)
			require.Error(t, err)

			var runErr *RunError
			require.True(t, errors.As(err, &runErr))
			assert.True(t, marble.IsParseError(err))
			assert.Contains(t, err.Error(), "marble run aborted")
		})
	}
}

func TestRun_ColdWithSubscriptionPointAborts(t *testing.T) {
	err := New().Run(func(c *Context) { c.Cold("-^-a") })

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Contains(t, err.Error(), "cannot have a subscription point")
}

func TestRun_SchedulingIntoThePastAborts(t *testing.T) {
	err := New().Run(func(c *Context) {
		c.ExpectObservable(c.Cold("-a-|")).ToBe("-a-|")
		c.Flush()
		c.ExpectObservable(c.Cold("a"), "^-!")
	})

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.True(t, engine.IsScheduleViolation(err))
}

func TestRun_UserPanicsPropagate(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = New().Run(func(*Context) { panic("boom") })
	})
}

func TestRun_MaterializerSubscriptionWindow(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		src := c.Cold("-a-b-c-|")

		// Unsubscribing at tick 3 wins over the frame due at the same tick
		c.ExpectObservable(src, "^--!").ToBe("-a")
		c.ExpectSubscriptions(src).ToBe("^--!")
	})
}

func TestRun_MaterializerLateSubscription(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		src := c.Cold("-a|")

		c.ExpectObservable(src, "---^").ToBe("----a|")
		c.ExpectSubscriptions(src).ToBe("---^-!")
	})
}

func TestRun_FlushMidDriver(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		src := c.Cold("-a-|")
		c.ExpectObservable(src).ToBe("-a-|")

		c.Flush()
		assert.Equal(t, int64(3), c.Now())

		c.ExpectObservable(src).ToBe("----a-|")
		c.ExpectSubscriptions(src).ToBe("^--!", "---^--!")
	})
}

func TestRun_HotObservable(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		// Frames before '^' are dropped; the rest are relative to it
		src := c.Hot("--a--^--b--|")

		c.ExpectObservable(src).ToBe("---b--|")
		c.ExpectSubscriptions(src).ToBe("^-----!")
	})
}

func TestRun_HotObservableLateSubscribers(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		src := c.Hot("-a-b-|")

		c.ExpectObservable(src, "--^").ToBe("---b-|")
		c.ExpectObservable(src, "----^").ToBe("-----|")
		c.ExpectObservable(src, "-------^").ToBe("-------|")
		c.ExpectSubscriptions(src).ToBe("--^--!", "----^!", "-------(^!)")
	})
}

func TestRun_HotObservableSharedAcrossSubscribers(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		src := c.Hot("-a-b-c-|")

		// Hot frames are queued at creation, ahead of the unsubscription at tick 3
		c.ExpectObservable(src).ToBe("-a-b-c-|")
		c.ExpectObservable(src, "^--!").ToBe("-a-b")
		c.ExpectSubscriptions(src).ToBe("^------!", "^--!")
	})
}

func TestRun_ErrorMatchModes(t *testing.T) {
	sentinel := errors.New("sentinel")

	tests := []struct {
		name   string
		opts   []Option
		expect func(e *Expectation)
		pass   bool
	}{
		{"ToBe ignores payload", nil, func(e *Expectation) { e.ToBe("-#") }, true},
		{"message match", nil, func(e *Expectation) { e.ToBeWithError("-#", nil, errors.New("sentinel")) }, true},
		{"message mismatch", nil, func(e *Expectation) { e.ToBeWithError("-#", nil, errors.New("other")) }, false},
		{"deep by default", []Option{WithErrorMatch(marble.MatchDeep)}, func(e *Expectation) {
			e.ToBeWithError("-#", nil, errors.New("sentinel"))
		}, false},
		{"deep same value", []Option{WithErrorMatch(marble.MatchDeep)}, func(e *Expectation) {
			e.ToBeWithError("-#", nil, sentinel)
		}, true},
		{"explicit mode wins", []Option{WithErrorMatch(marble.MatchDeep)}, func(e *Expectation) {
			e.ToBeWithError("-#", nil, errors.New("unrelated"), marble.MatchAnyError)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.opts...).Run(func(c *Context) {
				tt.expect(c.ExpectObservable(c.ColdWithError("-#", nil, sentinel)))
			})
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRun_ToBeFrames(t *testing.T) {
	RunT(t, New(), func(c *Context) {
		c.ExpectObservable(c.Cold("-a-|")).ToBeFrames(
			[]marble.Frame{marble.Next(1, "a"), marble.Complete(3)},
			marble.MatchMessage,
		)
	})
}

func TestRun_MaxTicksDiscardsLateFrames(t *testing.T) {
	RunT(t, New(WithMaxTicks(100)), func(c *Context) {
		c.ExpectObservable(c.Cold("-a 1s b|")).ToBe("-a")
	})
}

func TestRun_ColdFramePastTickRangeAborts(t *testing.T) {
	res, err := New().Execute(func(c *Context) {
		src := c.Cold("9223372036854774784ms a")
		c.ExpectObservable(src, "2000ms ^").ToBe("#")
	})

	assert.Nil(t, res)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.True(t, engine.IsScheduleViolation(err))
}

func TestRun_MaxActionsAbortsRunawaySchedule(t *testing.T) {
	_, err := New(WithMaxActions(50)).Execute(func(c *Context) {
		var tick func()
		tick = func() {
			_, _ = c.Scheduler().Schedule(0, tick)
		}
		_, _ = c.Scheduler().Schedule(1, tick)
		c.ExpectObservable(c.Cold("-a|")).ToBe("-a|")
	})

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.True(t, engine.IsActionLimit(err))
}

func TestRun_Normalizer(t *testing.T) {
	h := New(WithNormalizer(value.Normalize))
	RunT(t, h, func(c *Context) {
		src := c.Cold("-a-|", map[string]any{"a": int64(5)})
		c.ExpectObservable(src).ToBe("-x-|", map[string]any{"x": 5})
	})

	err := New().Run(func(c *Context) {
		src := c.Cold("-a-|", map[string]any{"a": int64(5)})
		c.ExpectObservable(src).ToBe("-x-|", map[string]any{"x": 5})
	})
	assert.Error(t, err, "without normalization int64(5) and int(5) differ")
}

func TestRun_HarnessIsReusable(t *testing.T) {
	h := New()
	for i := 0; i < 3; i++ {
		RunT(t, h, func(c *Context) {
			assert.Equal(t, int64(0), c.Now(), "every run starts at tick 0")
			c.ExpectObservable(c.Cold("--a|")).ToBe("--a|")
		})
	}
}

// fakeTB records what RunT reports.
type fakeTB struct {
	errors []string
	fatals []string
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func (f *fakeTB) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}

func TestRunT_Reporting(t *testing.T) {
	tb := &fakeTB{}
	RunT(tb, New(), func(c *Context) {
		c.ExpectObservable(c.Cold("a|")).ToBe("b|")
		c.ExpectObservable(c.Cold("a|")).ToBe("a-|")
	})
	assert.Len(t, tb.errors, 2)
	assert.Empty(t, tb.fatals)

	tb = &fakeTB{}
	RunT(tb, New(), func(c *Context) { c.Cold("((") })
	assert.Empty(t, tb.errors)
	require.Len(t, tb.fatals, 1)
	assert.Contains(t, tb.fatals[0], "nested group")

	tb = &fakeTB{}
	RunT(tb, New(), func(c *Context) {
		c.ExpectObservable(c.Cold("a|")).ToBe("a|")
	})
	assert.Empty(t, tb.errors)
	assert.Empty(t, tb.fatals)
}
