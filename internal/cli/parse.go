package cli

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/marble"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Values       []string // k=v pairs
	Error        string   // payload message for '#'
	Subscription bool     // parse as a subscription diagram
}

// ParseResult is the parsed form of a diagram.
type ParseResult struct {
	Diagram      string      `json:"diagram"`
	Frames       []FrameJSON `json:"frames,omitempty"`
	Subscription *WindowJSON `json:"subscription,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <diagram>",
		Short: "Parse a marble diagram into frames",
		Long: `Parse a marble diagram and print its frames with their ticks.

Value characters map to themselves unless --value supplies payloads; with
--value, every value character must be mapped. With --subscription the
diagram may only contain '^', '!', '-', groups and time progressions.
Diagrams that start with '-' go after "--".

Examples:
  marbles parse -- "-a-b-|"
  marbles parse --value a=1 --value b=2 -- "-a-b-|"
  marbles parse "500ms (ab#)" --error boom --format json
  marbles parse "^ 499ms !" --subscription`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Values, "value", nil, "value payload as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Error, "error", "", "error message for '#' frames")
	cmd.Flags().BoolVar(&opts.Subscription, "subscription", false, "parse a subscription diagram")

	return cmd
}

func runParse(opts *ParseOptions, pattern string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result, err := parseDiagram(opts, pattern)
	if err != nil {
		code := ErrCodeGeneric
		if marble.IsParseError(err) {
			code = ErrCodeParse
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parse failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(result.text())
}

func parseDiagram(opts *ParseOptions, pattern string) (*ParseResult, error) {
	if opts.Subscription {
		w, err := marble.ParseSubscription(pattern)
		if err != nil {
			return nil, err
		}
		wj := toWindowJSON(w)
		return &ParseResult{Diagram: pattern, Subscription: &wj}, nil
	}

	values, err := parseValueFlags(opts.Values)
	if err != nil {
		return nil, err
	}
	var payload error
	if opts.Error != "" {
		payload = errors.New(opts.Error)
	}

	d, err := marble.Parse(pattern, marble.WithValues(values), marble.WithError(payload))
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Diagram: pattern, Frames: toFramesJSON(d.Frames)}
	if d.Window != nil {
		wj := toWindowJSON(*d.Window)
		result.Subscription = &wj
	}
	return result, nil
}

func (r *ParseResult) text() string {
	var b strings.Builder
	for _, f := range r.Frames {
		fmt.Fprintf(&b, "tick=%d %s", f.Tick, f.Kind)
		switch {
		case f.Kind == "next":
			fmt.Fprintf(&b, " %v", f.Value)
		case f.Error != "":
			fmt.Fprintf(&b, " %s", f.Error)
		}
		b.WriteByte('\n')
	}
	if w := r.Subscription; w != nil {
		b.WriteString("subscription:")
		if w.Subscribe != nil {
			fmt.Fprintf(&b, " subscribe=%d", *w.Subscribe)
		}
		if w.Unsubscribe != nil {
			fmt.Fprintf(&b, " unsubscribe=%d", *w.Unsubscribe)
		}
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "(no frames)"
	}
	return strings.TrimSuffix(b.String(), "\n")
}
