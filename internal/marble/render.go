package marble

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// progressionThreshold is the shortest gap rendered as a time progression
// instead of a run of dashes.
const progressionThreshold = 10

// Render converts frames back into a marble diagram. Parsing the result
// yields frames at the same ticks.
//
// Value labels are found by reverse lookup in values. Without a match, a
// payload that is itself a single letter or digit string is used verbatim.
func Render(frames []Frame, values map[string]any) (string, error) {
	var b strings.Builder
	labels := newLabeler(values)

	next := int64(0) // first tick not yet covered by the output
	for i := 0; i < len(frames); {
		tick := frames[i].Tick
		if tick < next {
			return "", errors.Errorf("frame %d at tick %d cannot be rendered after output ending at tick %d", i, tick, next)
		}

		j := i
		for j < len(frames) && frames[j].Tick == tick {
			j++
		}

		writeGap(&b, tick-next)

		group := frames[i:j]
		if len(group) > 1 {
			b.WriteByte('(')
		}
		for k, f := range group {
			sym, err := labels.symbol(f)
			if err != nil {
				return "", errors.Wrapf(err, "frame %d", i+k)
			}
			b.WriteString(sym)
		}
		if len(group) > 1 {
			b.WriteByte(')')
			next = tick + int64(len(group)) + 2
		} else {
			next = tick + 1
		}

		i = j
	}

	return strings.TrimSpace(b.String()), nil
}

// RenderSubscription converts a subscription window into a diagram.
func RenderSubscription(w Window) string {
	if w.Subscribe == Never {
		return ""
	}

	var b strings.Builder
	writeGap(&b, w.Subscribe)
	switch {
	case w.Unsubscribe == w.Subscribe:
		b.WriteString("(^!)")
	case w.Unsubscribe == Never:
		b.WriteByte('^')
	default:
		b.WriteByte('^')
		writeGap(&b, w.Unsubscribe-w.Subscribe-1)
		b.WriteByte('!')
	}
	return strings.TrimSpace(b.String())
}

func writeGap(b *strings.Builder, gap int64) {
	if gap <= 0 {
		return
	}
	if gap < progressionThreshold {
		b.WriteString(strings.Repeat("-", int(gap)))
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	fmt.Fprintf(b, "%dms ", gap)
}

type labeler struct {
	keys   []string
	values map[string]any
}

func newLabeler(values map[string]any) *labeler {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &labeler{keys: keys, values: values}
}

func (l *labeler) symbol(f Frame) (string, error) {
	switch f.Kind {
	case KindError:
		return "#", nil
	case KindComplete:
		return "|", nil
	case KindNext:
		return l.label(f.Value)
	default:
		return "", errors.Errorf("unknown frame kind %v", f.Kind)
	}
}

func (l *labeler) label(v any) (string, error) {
	for _, k := range l.keys {
		if reflect.DeepEqual(l.values[k], v) && isLabel(k) {
			return k, nil
		}
	}
	if s, ok := v.(string); ok && isLabel(s) {
		return s, nil
	}
	return "", errors.Errorf("no single-character label for value %v", v)
}

func isLabel(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
