package cli

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/value"
)

// FrameJSON is the JSON form of a frame in command input and output.
type FrameJSON struct {
	Tick  int64  `json:"tick"`
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// WindowJSON is the JSON form of a subscription window. Missing bounds are
// omitted.
type WindowJSON struct {
	Subscribe   *int64 `json:"subscribe,omitempty"`
	Unsubscribe *int64 `json:"unsubscribe,omitempty"`
	Diagram     string `json:"diagram"`
}

func toFramesJSON(frames []marble.Frame) []FrameJSON {
	out := make([]FrameJSON, len(frames))
	for i, f := range frames {
		fj := FrameJSON{Tick: f.Tick, Kind: f.Kind.String()}
		switch f.Kind {
		case marble.KindNext:
			fj.Value = f.Value
		case marble.KindError:
			if f.Err != nil {
				fj.Error = f.Err.Error()
			}
		}
		out[i] = fj
	}
	return out
}

// fromFramesJSON converts decoded frames back, normalizing JSON numbers to
// int64 where they are integral.
func fromFramesJSON(in []FrameJSON) ([]marble.Frame, error) {
	out := make([]marble.Frame, len(in))
	for i, fj := range in {
		kind, ok := marble.ParseKind(fj.Kind)
		if !ok {
			return nil, errors.Errorf("frame %d: unknown kind %q (want next, error or complete)", i, fj.Kind)
		}
		switch kind {
		case marble.KindNext:
			out[i] = marble.Next(fj.Tick, value.Normalize(fj.Value))
		case marble.KindError:
			err := marble.DefaultError
			if fj.Error != "" {
				err = errors.New(fj.Error)
			}
			out[i] = marble.Error(fj.Tick, err)
		default:
			out[i] = marble.Complete(fj.Tick)
		}
	}
	return out, nil
}

func toWindowJSON(w marble.Window) WindowJSON {
	out := WindowJSON{Diagram: marble.RenderSubscription(w)}
	if w.Subscribe != marble.Never {
		s := w.Subscribe
		out.Subscribe = &s
	}
	if w.Unsubscribe != marble.Never {
		u := w.Unsubscribe
		out.Unsubscribe = &u
	}
	return out
}

// parseValueFlags turns repeated k=v flags into a values map. Each value is
// decoded as a YAML scalar or flow collection, so "1" is a number, "true" a
// bool and "[1, 2]" a list; anything else stays a string.
func parseValueFlags(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	values := make(map[string]any, len(flags))
	for _, kv := range flags {
		k, raw, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid value %q: want key=value", kv)
		}
		if len([]rune(k)) != 1 {
			return nil, errors.Errorf("invalid value key %q: keys are single characters", k)
		}

		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		values[k] = value.Normalize(v)
	}
	return values, nil
}

// describeFrames renders frames as a diagram, or as a frame list when no
// diagram can express them.
func describeFrames(frames []marble.Frame, values map[string]any) string {
	if len(frames) == 0 {
		return "(no frames)"
	}
	if d, err := marble.Render(frames, values); err == nil {
		return d
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// labelAlphabet is the order in which autoValues hands out labels.
const labelAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// autoValues assigns a label to every distinct payload that cannot label
// itself, skipping letters already used by single-character string
// payloads. It returns nil when no payload needs a label or the alphabet
// runs out.
func autoValues(frames []marble.Frame) map[string]any {
	used := make(map[string]bool)
	for _, f := range frames {
		if s, ok := f.Value.(string); ok && f.Kind == marble.KindNext && isLabel(s) {
			used[s] = true
		}
	}

	values := make(map[string]any)
	labels := []rune(labelAlphabet)
	next := 0
outer:
	for _, f := range frames {
		if f.Kind != marble.KindNext {
			continue
		}
		if s, ok := f.Value.(string); ok && isLabel(s) {
			continue
		}
		for _, v := range values {
			if value.Equal(v, f.Value) {
				continue outer
			}
		}
		for next < len(labels) && used[string(labels[next])] {
			next++
		}
		if next == len(labels) {
			return nil
		}
		values[string(labels[next])] = f.Value
		next++
	}

	if len(values) == 0 {
		return nil
	}
	return values
}

func isLabel(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
