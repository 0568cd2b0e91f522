package cli

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Scenario string // show the latest run of this scenario
	RunID    string // show this run
}

// RunSummary is one line of the run list.
type RunSummary struct {
	Seq      int64  `json:"seq"`
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Pass     bool   `json:"pass"`
	Digest   string `json:"digest"`
}

// TraceResult is a recorded run as shown by trace.
type TraceResult struct {
	RunSummary
	Errors        []string                `json:"errors,omitempty"`
	Expectations  []TraceExpectation      `json:"expectations"`
	Subscriptions map[string][]WindowJSON `json:"subscriptions"`

	// sources keeps declaration order for text output.
	sources []string
}

// TraceExpectation is what one materializer observed in a recorded run.
type TraceExpectation struct {
	Name    string         `json:"name"`
	Pass    bool           `json:"pass"`
	Diagram string         `json:"diagram"`
	Values  map[string]any `json:"values,omitempty"`
	Frames  []FrameJSON    `json:"frames"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect runs recorded by "marbles test --db".

Without --scenario or --run, lists every recorded run. With --scenario,
shows the most recent run of that scenario; with --run, the run with that
ID. A run is shown as the diagram each expectation observed and the
subscription log of each source.

Examples:
  marbles trace --db ./marbles.db
  marbles trace --db ./marbles.db --scenario pipe_map
  marbles trace --db ./marbles.db --run 0190a1b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show the latest run of a scenario")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a run by ID")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// --db may come from the config file, so it is checked here rather
	// than with MarkFlagRequired.
	if opts.Database == "" {
		_ = formatter.Error(ErrCodeDatabase, "no database: pass --db or set db in the config", nil)
		return NewExitError(ExitCommandError, "no database configured")
	}
	if opts.Scenario != "" && opts.RunID != "" {
		return NewExitError(ExitCommandError, "--scenario and --run are mutually exclusive")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Scenario == "" && opts.RunID == "" {
		return listRuns(ctx, opts, st, formatter)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx, opts.Scenario)
	}
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("run not found: %s", opts.RunID)
		if opts.RunID == "" {
			msg = fmt.Sprintf("no runs recorded for scenario: %s", opts.Scenario)
		}
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := buildTrace(run)
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(result.text())
}

func listRuns(ctx context.Context, opts *TraceOptions, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, "")
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = summarize(r)
	}
	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	if len(summaries) == 0 {
		return formatter.Success("No runs recorded.")
	}
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "%4d  %s  %-4s  %s\n", s.Seq, s.ID, passStatus(s.Pass), s.Scenario)
	}
	return formatter.Success(strings.TrimSuffix(b.String(), "\n"))
}

func summarize(r store.Run) RunSummary {
	return RunSummary{Seq: r.Seq, ID: r.ID, Scenario: r.Scenario, Pass: r.Pass, Digest: r.Digest}
}

func buildTrace(run store.Run) TraceResult {
	result := TraceResult{
		RunSummary:    summarize(run),
		Errors:        run.Errors,
		Expectations:  make([]TraceExpectation, len(run.Expectations)),
		Subscriptions: make(map[string][]WindowJSON, len(run.Sources)),
	}
	for i, e := range run.Expectations {
		values := autoValues(e.Frames)
		result.Expectations[i] = TraceExpectation{
			Name:    e.Name,
			Pass:    e.Pass,
			Diagram: describeFrames(e.Frames, values),
			Values:  values,
			Frames:  toFramesJSON(e.Frames),
		}
	}
	for _, src := range run.Sources {
		windows := make([]WindowJSON, len(src.Windows))
		for i, w := range src.Windows {
			windows[i] = toWindowJSON(w)
		}
		result.Subscriptions[src.Name] = windows
		result.sources = append(result.sources, src.Name)
	}
	return result
}

func (r TraceResult) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (#%d)\n", r.ID, r.Seq)
	fmt.Fprintf(&b, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "Status: %s\n", passStatus(r.Pass))
	fmt.Fprintf(&b, "Digest: %s\n", r.Digest)

	b.WriteString("\n=== Expectations ===\n")
	if len(r.Expectations) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, e := range r.Expectations {
		fmt.Fprintf(&b, "  %-4s %s  %s", passStatus(e.Pass), e.Name, e.Diagram)
		if len(e.Values) > 0 {
			fmt.Fprintf(&b, "  (%s)", legend(e.Values))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\n=== Subscriptions ===\n")
	if len(r.sources) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, name := range r.sources {
		windows := r.Subscriptions[name]
		if len(windows) == 0 {
			fmt.Fprintf(&b, "  %s  (never subscribed)\n", name)
			continue
		}
		for _, w := range windows {
			fmt.Fprintf(&b, "  %s  %s\n", name, w.Diagram)
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n=== Failures ===\n")
		for _, e := range r.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// legend lists label assignments in label order, e.g. "a=10, b=[1 2]".
func legend(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, values[k])
	}
	return strings.Join(parts, ", ")
}

func passStatus(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
