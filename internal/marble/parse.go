package marble

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"unicode"
)

// progressionPattern matches a time progression token at the current position: a
// number, a unit, then whitespace or the end of the pattern.
var progressionPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m)(?:\s|$)`)

var unitTicks = map[string]float64{
	"ms": 1,
	"s":  1000,
	"m":  60 * 1000,
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	values map[string]any
	err    error
}

// WithValues maps value characters to payloads. Once a map is given, every
// value character in the pattern must be present in it.
func WithValues(values map[string]any) ParseOption {
	return func(c *parseConfig) {
		c.values = values
	}
}

// WithError sets the payload of '#' frames.
func WithError(err error) ParseOption {
	return func(c *parseConfig) {
		c.err = err
	}
}

type scanMode int

const (
	modeEvents scanMode = iota
	modeSubscription
)

// Parse converts a marble pattern into frames. Frame ticks are absolute
// offsets from the first character of the pattern. A '^' marker is reported
// through Diagram.Window.
func Parse(pattern string, opts ...ParseOption) (*Diagram, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := newScanner(pattern, modeEvents, cfg)
	if err := s.scan(); err != nil {
		return nil, err
	}

	d := &Diagram{Frames: s.frames}
	if s.subscribe != Never {
		d.Window = &Window{Subscribe: s.subscribe, Unsubscribe: s.unsubscribe}
	}
	return d, nil
}

// ParseSubscription parses a subscription diagram such as "^--!" or "(^!)".
// A blank pattern yields a window that was never subscribed.
func ParseSubscription(pattern string) (Window, error) {
	s := newScanner(pattern, modeSubscription, parseConfig{})
	if err := s.scan(); err != nil {
		return Window{}, err
	}
	return Window{Subscribe: s.subscribe, Unsubscribe: s.unsubscribe}, nil
}

// scanner is a single-pass state machine over the pattern's runes.
type scanner struct {
	pattern string
	runes   []rune
	mode    scanMode
	cfg     parseConfig

	tick       int64
	inGroup    bool
	groupStart int64
	groupPos   int

	subscribe   int64
	unsubscribe int64

	frames     []Frame
	terminated bool
}

func newScanner(pattern string, mode scanMode, cfg parseConfig) *scanner {
	return &scanner{
		pattern:     pattern,
		runes:       []rune(pattern),
		mode:        mode,
		cfg:         cfg,
		subscribe:   Never,
		unsubscribe: Never,
	}
}

func (s *scanner) scan() error {
	for i := 0; i < len(s.runes); i++ {
		c := s.runes[i]
		if unicode.IsSpace(c) {
			continue
		}

		if unicode.IsDigit(c) && (i == 0 || unicode.IsSpace(s.runes[i-1])) {
			n, ticks, ok, err := s.progression(i)
			if err != nil {
				return err
			}
			if ok {
				s.tick += ticks
				i += n - 1
				continue
			}
		}

		if err := s.symbol(i, c); err != nil {
			return err
		}
	}

	if s.inGroup {
		return s.fail(s.groupPos, "unclosed group '('")
	}
	return nil
}

// progression reports how many runes a time progression token at i spans
// and how many ticks it advances. ok is false when there is no token at i.
func (s *scanner) progression(i int) (n int, ticks int64, ok bool, err error) {
	m := progressionPattern.FindStringSubmatch(string(s.runes[i:]))
	if m == nil {
		return 0, 0, false, nil
	}
	if s.inGroup {
		return 0, 0, false, s.fail(i, "time progression inside a group")
	}

	amount, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0, 0, false, s.fail(i, fmt.Sprintf("invalid time progression %q", m[1]+m[2]))
	}
	total := amount * unitTicks[m[2]]
	if total != math.Trunc(total) {
		return 0, 0, false, s.fail(i, fmt.Sprintf("time progression %q is not a whole number of ticks", m[1]+m[2]))
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if total >= float64(math.MaxInt64) || int64(total) > math.MaxInt64-s.tick {
		return 0, 0, false, s.fail(i, fmt.Sprintf("time progression %q overflows the tick range", m[1]+m[2]))
	}

	return len(m[1]) + len(m[2]), int64(total), true, nil
}

func (s *scanner) symbol(i int, c rune) error {
	if s.tick == math.MaxInt64 {
		return s.fail(i, "pattern overflows the tick range")
	}
	at := s.tick
	if s.inGroup {
		at = s.groupStart
	}

	switch c {
	case '-':
	case '(':
		if s.inGroup {
			return s.fail(i, "nested group")
		}
		s.inGroup = true
		s.groupStart = s.tick
		s.groupPos = i
	case ')':
		if !s.inGroup {
			return s.fail(i, "unmatched ')'")
		}
		s.inGroup = false
	case '^':
		if s.subscribe != Never {
			return s.fail(i, "duplicate subscription point '^'")
		}
		s.subscribe = at
	case '!':
		if s.unsubscribe != Never {
			return s.fail(i, "duplicate unsubscription point '!'")
		}
		if s.subscribe == Never {
			return s.fail(i, "unsubscription point '!' before subscription point '^'")
		}
		s.unsubscribe = at
	default:
		if s.mode == modeSubscription {
			return s.fail(i, fmt.Sprintf("unexpected %q, subscription diagrams only allow '^' and '!'", c))
		}
		if err := s.event(i, c, at); err != nil {
			return err
		}
	}

	s.tick++
	return nil
}

func (s *scanner) event(i int, c rune, at int64) error {
	var f Frame
	switch {
	case c == '|':
		f = Complete(at)
	case c == '#':
		err := s.cfg.err
		if err == nil {
			err = DefaultError
		}
		f = Error(at, err)
	case unicode.IsLetter(c) || unicode.IsDigit(c):
		v, err := s.lookup(i, c)
		if err != nil {
			return err
		}
		f = Next(at, v)
	default:
		return s.fail(i, fmt.Sprintf("unrecognized character %q", c))
	}

	if s.terminated {
		return s.fail(i, "frame after terminal notification")
	}
	if f.Kind.Terminal() {
		s.terminated = true
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *scanner) lookup(i int, c rune) (any, error) {
	key := string(c)
	if s.cfg.values == nil {
		return key, nil
	}
	v, ok := s.cfg.values[key]
	if !ok {
		return nil, s.fail(i, fmt.Sprintf("value %q not found in values map", key))
	}
	return v, nil
}

func (s *scanner) fail(pos int, msg string) *ParseError {
	return &ParseError{Pattern: s.pattern, Pos: pos, Message: msg}
}
