package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/marbles/internal/marble"
)

// Scenario is a marble test described as data. It declares sources,
// optional operator pipelines applied to them, expected diagrams and
// expected subscription logs.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are named after it.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Sources       []SourceSpec       `yaml:"sources" json:"sources"`
	Expectations  []ExpectationSpec  `yaml:"expectations,omitempty" json:"expectations,omitempty"`
	Subscriptions []SubscriptionSpec `yaml:"subscriptions,omitempty" json:"subscriptions,omitempty"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-" json:"-"`
}

// Source kinds.
const (
	SourceCold      = "cold"
	SourceHot       = "hot"
	SourceScheduled = "scheduled"
)

// SourceSpec declares one source.
type SourceSpec struct {
	Name string `yaml:"name" json:"name"`

	// Kind is cold (default), hot or scheduled.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Marbles is the diagram for cold and hot sources.
	Marbles string `yaml:"marbles,omitempty" json:"marbles,omitempty"`

	// Values maps value characters to payloads.
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty"`

	// Error is the message of the error emitted at '#'.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	// Items are the values a scheduled source emits at its subscribe tick.
	Items []any `yaml:"items,omitempty" json:"items,omitempty"`
}

// ExpectationSpec declares one ExpectObservable call.
type ExpectationSpec struct {
	Name   string     `yaml:"name,omitempty" json:"name,omitempty"`
	Source string     `yaml:"source" json:"source"`
	Pipe   []PipeStep `yaml:"pipe,omitempty" json:"pipe,omitempty"`

	// Subscription is an optional subscription diagram for the
	// materializer.
	Subscription string `yaml:"subscription,omitempty" json:"subscription,omitempty"`

	Marbles string         `yaml:"marbles" json:"marbles"`
	Values  map[string]any `yaml:"values,omitempty" json:"values,omitempty"`

	// Error is the expected message at '#'. When Error and ErrorMatch are
	// both empty, any error payload matches.
	Error      string `yaml:"error,omitempty" json:"error,omitempty"`
	ErrorMatch string `yaml:"error_match,omitempty" json:"error_match,omitempty"`
}

// PipeStep is one operator. Exactly one field must be set.
type PipeStep struct {
	// Delay shifts values by this many ticks.
	Delay *int64 `yaml:"delay,omitempty" json:"delay,omitempty"`

	// Map replaces values found in the table; others pass through.
	Map []MapEntry `yaml:"map,omitempty" json:"map,omitempty"`

	// Filter keeps only the listed values.
	Filter []any `yaml:"filter,omitempty" json:"filter,omitempty"`

	// ErrorOn fails the stream when the value arrives.
	ErrorOn *ErrorOn `yaml:"error_on,omitempty" json:"error_on,omitempty"`

	// SwitchError switch-maps every value to an observable that fails
	// with this message.
	SwitchError *string `yaml:"switch_error,omitempty" json:"switch_error,omitempty"`
}

// MapEntry is one row of a map step.
type MapEntry struct {
	From any `yaml:"from" json:"from"`
	To   any `yaml:"to" json:"to"`
}

// ErrorOn fails with Message when Value arrives.
type ErrorOn struct {
	Value   any    `yaml:"value" json:"value"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// SubscriptionSpec declares one ExpectSubscriptions call.
type SubscriptionSpec struct {
	Source  string   `yaml:"source" json:"source"`
	Marbles []string `yaml:"marbles" json:"marbles"`
}

// LoadScenario reads a scenario file. Files ending in .cue are evaluated
// with CUE; everything else is decoded as YAML. Unknown fields are
// rejected, and the scenario is validated before it is returned.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var s *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		s, err = DecodeCUEScenario(data, path)
	} else {
		s, err = DecodeScenario(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	s.Path = path
	return s, nil
}

// DecodeScenario parses and validates a YAML (or JSON) scenario.
func DecodeScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	if err := ValidateScenario(&s); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &s, nil
}

// DecodeCUEScenario evaluates a CUE scenario. The scenario is either the
// whole file or the value of a top-level "scenario" field, which lets a CUE
// file carry its own definitions next to the data.
func DecodeCUEScenario(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to compile CUE")
	}

	if sv := v.LookupPath(cue.ParsePath("scenario")); sv.Exists() {
		v = sv
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.Wrap(err, "scenario is not concrete")
	}

	// JSON is valid YAML: going through the YAML decoder keeps strict field
	// checking and integer decoding identical for both formats.
	js, err := v.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "failed to export CUE")
	}
	return DecodeScenario(js)
}

// ValidateScenario checks required fields, references between sections,
// and that every diagram parses.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Sources) == 0 {
		return errors.New("sources list is required and must be non-empty")
	}
	if len(s.Expectations) == 0 && len(s.Subscriptions) == 0 {
		return errors.New("at least one expectation or subscription expectation is required")
	}

	kinds := make(map[string]string, len(s.Sources))
	for i := range s.Sources {
		src := &s.Sources[i]
		if err := validateSource(src); err != nil {
			return errors.Wrapf(err, "sources[%d]", i)
		}
		if _, dup := kinds[src.Name]; dup {
			return errors.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		kinds[src.Name] = src.kind()
	}

	names := make(map[string]bool, len(s.Expectations))
	for i := range s.Expectations {
		e := &s.Expectations[i]
		if err := validateExpectation(e, kinds); err != nil {
			return errors.Wrapf(err, "expectations[%d]", i)
		}
		if e.Name != "" {
			if names[e.Name] {
				return errors.Errorf("expectations[%d]: duplicate expectation name %q", i, e.Name)
			}
			names[e.Name] = true
		}
	}

	for i, sub := range s.Subscriptions {
		kind, ok := kinds[sub.Source]
		if !ok {
			return errors.Errorf("subscriptions[%d]: unknown source %q", i, sub.Source)
		}
		if kind == SourceScheduled {
			return errors.Errorf("subscriptions[%d]: scheduled source %q has no subscription log", i, sub.Source)
		}
		for j, m := range sub.Marbles {
			if _, err := marble.ParseSubscription(m); err != nil {
				return errors.Wrapf(err, "subscriptions[%d].marbles[%d]", i, j)
			}
		}
	}
	return nil
}

func (s *SourceSpec) kind() string {
	if s.Kind == "" {
		return SourceCold
	}
	return s.Kind
}

func validateSource(src *SourceSpec) error {
	if src.Name == "" {
		return errors.New("name is required")
	}

	switch src.kind() {
	case SourceCold, SourceHot:
		if len(src.Items) > 0 {
			return errors.Errorf("items are only valid for scheduled sources")
		}
		d, err := marble.Parse(src.Marbles, marble.WithValues(src.Values))
		if err != nil {
			return err
		}
		if src.kind() == SourceCold && d.Window != nil {
			return errors.New("cold sources cannot have a subscription point")
		}
	case SourceScheduled:
		if src.Marbles != "" {
			return errors.New("scheduled sources take items, not marbles")
		}
	default:
		return errors.Errorf("unknown source kind %q (want cold, hot or scheduled)", src.Kind)
	}
	return nil
}

func validateExpectation(e *ExpectationSpec, kinds map[string]string) error {
	if _, ok := kinds[e.Source]; !ok {
		return errors.Errorf("unknown source %q", e.Source)
	}

	for i, step := range e.Pipe {
		if err := step.validate(); err != nil {
			return errors.Wrapf(err, "pipe[%d]", i)
		}
	}

	if e.Subscription != "" {
		if _, err := marble.ParseSubscription(e.Subscription); err != nil {
			return errors.Wrap(err, "subscription")
		}
	}
	if _, err := marble.Parse(e.Marbles, marble.WithValues(e.Values)); err != nil {
		return err
	}
	if e.ErrorMatch != "" {
		if _, err := marble.ParseErrorMatch(e.ErrorMatch); err != nil {
			return err
		}
	}
	return nil
}

func (p PipeStep) validate() error {
	set := 0
	if p.Delay != nil {
		set++
		if *p.Delay < 0 {
			return errors.Errorf("delay must be non-negative, got %d", *p.Delay)
		}
	}
	if p.Map != nil {
		set++
	}
	if p.Filter != nil {
		set++
	}
	if p.ErrorOn != nil {
		set++
	}
	if p.SwitchError != nil {
		set++
	}
	if set != 1 {
		return errors.Errorf("exactly one of delay, map, filter, error_on, switch_error must be set (got %d)", set)
	}
	return nil
}
