package harness

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/stream"
	"github.com/roach88/marbles/internal/value"
)

// RunScenario executes a scenario. Payloads are normalized with
// value.Normalize, so YAML and CUE numbers compare equal regardless of
// their decoded Go type. Options are applied after the defaults.
func RunScenario(s *Scenario, opts ...Option) (*Result, error) {
	if err := ValidateScenario(s); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}

	h := New(append([]Option{WithNormalizer(value.Normalize)}, opts...)...)
	return h.Execute(func(c *Context) {
		sources := make(map[string]stream.Observable, len(s.Sources))
		logs := make(map[string]SubscriptionLog, len(s.Sources))

		for _, src := range s.Sources {
			obs, log := buildSource(c, src)
			sources[src.Name] = obs
			if log != nil {
				logs[src.Name] = log
			}
		}

		for i, exp := range s.Expectations {
			obs := stream.Pipe(sources[exp.Source], buildPipe(c, exp.Pipe)...)

			var e *Expectation
			if exp.Subscription != "" {
				e = c.ExpectObservable(obs, exp.Subscription)
			} else {
				e = c.ExpectObservable(obs)
			}
			e.Named(expectationName(exp, i))

			if exp.Error == "" && exp.ErrorMatch == "" {
				e.ToBe(exp.Marbles, exp.Values)
				continue
			}

			var expectedErr error
			if exp.Error != "" {
				expectedErr = errors.New(exp.Error)
			}
			if exp.ErrorMatch == "" {
				e.ToBeWithError(exp.Marbles, exp.Values, expectedErr)
				continue
			}
			mode, err := marble.ParseErrorMatch(exp.ErrorMatch)
			if err != nil {
				c.fail(err)
			}
			e.ToBeWithError(exp.Marbles, exp.Values, expectedErr, mode)
		}

		for _, sub := range s.Subscriptions {
			c.ExpectSubscriptions(logs[sub.Source]).
				Named("subscriptions of " + sub.Source).
				ToBe(sub.Marbles...)
		}
	})
}

func expectationName(spec ExpectationSpec, i int) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.Source + "#" + strconv.Itoa(i+1)
}

func buildSource(c *Context, spec SourceSpec) (stream.Observable, SubscriptionLog) {
	var srcErr error
	if spec.Error != "" {
		srcErr = errors.New(spec.Error)
	}

	switch spec.kind() {
	case SourceHot:
		hot := c.HotWithError(spec.Marbles, spec.Values, srcErr).Named(spec.Name)
		return hot, hot
	case SourceScheduled:
		return stream.Scheduled(c.Scheduler(), spec.Items...), nil
	default:
		cold := c.ColdWithError(spec.Marbles, spec.Values, srcErr).Named(spec.Name)
		return cold, cold
	}
}

func buildPipe(c *Context, steps []PipeStep) []stream.Operator {
	ops := make([]stream.Operator, 0, len(steps))
	for _, step := range steps {
		switch {
		case step.Delay != nil:
			ops = append(ops, stream.Delay(c.Scheduler(), *step.Delay))

		case step.Map != nil:
			table := step.Map
			ops = append(ops, stream.Map(func(v any) (any, error) {
				for _, row := range table {
					if value.Equal(v, row.From) {
						return row.To, nil
					}
				}
				return v, nil
			}))

		case step.Filter != nil:
			keep := step.Filter
			ops = append(ops, stream.Filter(func(v any) (bool, error) {
				for _, k := range keep {
					if value.Equal(v, k) {
						return true, nil
					}
				}
				return false, nil
			}))

		case step.ErrorOn != nil:
			on := *step.ErrorOn
			ops = append(ops, stream.Map(func(v any) (any, error) {
				if value.Equal(v, on.Value) {
					return nil, errorMessage(on.Message)
				}
				return v, nil
			}))

		case step.SwitchError != nil:
			msg := *step.SwitchError
			ops = append(ops, stream.SwitchMap(func(any) (stream.Observable, error) {
				return stream.Throw(errorMessage(msg)), nil
			}))
		}
	}
	return ops
}

func errorMessage(msg string) error {
	if msg == "" {
		return marble.DefaultError
	}
	return errors.New(msg)
}
