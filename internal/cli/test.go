package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/harness"
	"github.com/roach88/marbles/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)

	// IDs names recorded runs. Defaults to UUIDv7.
	IDs store.IDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	RunID  string   `json:"run_id,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// Golden states reported per scenario.
const (
	goldenMatch   = "match"
	goldenUpdated = "updated"
	goldenMissing = "missing"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run marble scenarios",
		Long: `Run every scenario file in a directory under virtual time.

Each scenario's expectations are checked, and its snapshot (recorded frames
and subscription logs) is compared with golden/<name>.golden next to the
scenario file when that file exists. With --db every run is recorded so it
can be inspected later with "marbles trace".

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, database errors, etc.)

Examples:
  marbles test ./scenarios
  marbles test ./scenarios --filter "hot-*"
  marbles test ./scenarios --update
  marbles test ./scenarios --db ./marbles.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	if err := requireDir(dir, "scenarios"); err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}

	hopts, err := opts.harnessOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	files, err := FindScenarioFiles(dir, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return formatter.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		return formatter.Success("No scenarios found.")
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}
	if opts.IDs == nil {
		opts.IDs = store.UUIDv7Generator{}
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenarioFile(cmd.Context(), opts, st, file, hopts)
		logger.Debug("scenario finished", "scenario", sr.Name, "pass", sr.Pass, "golden", sr.Golden)

		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if opts.Format == "json" {
			_ = formatter.Report(result, ErrCodeTestFailed, msg)
		} else {
			_ = formatter.Success(result.text())
		}
		return NewExitError(ExitFailure, msg)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(result.text())
}

// runScenarioFile loads, runs, snapshots and optionally records one
// scenario. Every problem is reported in the result rather than returned.
func runScenarioFile(ctx context.Context, opts *TestOptions, st *store.Store, file string, hopts []harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	res, err := harness.RunScenario(scenario, hopts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	sr.Pass = res.Pass
	for _, f := range res.Failures {
		sr.Errors = append(sr.Errors, f.Error())
	}

	snapshot, err := harness.SnapshotJSON(scenario.Name, res)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("snapshot failed: %v", err))
		return sr
	}

	path := goldenPath(filepath.Dir(file), scenario.Name)
	switch err := harness.CheckGolden(path, snapshot, opts.Update); {
	case err == nil && opts.Update:
		sr.Golden = goldenUpdated
	case err == nil:
		sr.Golden = goldenMatch
	case errors.Is(err, harness.ErrGoldenMissing):
		// No golden file: assertions only.
		sr.Golden = goldenMissing
	default:
		sr.Pass = false
		var mismatch *harness.GoldenMismatchError
		if errors.As(err, &mismatch) {
			sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
		} else {
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		}
	}

	if st != nil {
		id, err := recordRun(ctx, st, opts.IDs, scenario.Name, res)
		if err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to record run: %v", err))
			return sr
		}
		sr.RunID = id
	}
	return sr
}

func recordRun(ctx context.Context, st *store.Store, ids store.IDGenerator, scenario string, res *harness.Result) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	run, err := store.NewRun(ids.Generate(), scenario, res)
	if err != nil {
		return "", err
	}
	if err := st.WriteRun(ctx, &run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (r TestResult) text() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s", mark, s.Name)
		if s.Golden == goldenUpdated {
			b.WriteString(" (golden updated)")
		}
		b.WriteByte('\n')
		for _, e := range s.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	}

	fmt.Fprintf(&b, "\nTest Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 {
		b.WriteString("\n✓ All scenarios passed")
	}
	return b.String()
}
