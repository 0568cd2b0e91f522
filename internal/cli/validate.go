package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/harness"
)

// ValidationResult holds validation results for a scenario directory.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Scenarios []ScenarioStatus  `json:"scenarios"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// ScenarioStatus is the validation outcome of one file.
type ScenarioStatus struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
}

// ValidationError is one invalid scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenario files without running them",
		Long: `Load every scenario file (.yaml, .yml, .cue) in a directory and check it:
required fields, source references, operator steps and that every diagram
parses. Nothing is executed.

Exit codes:
  0 - All scenarios are valid
  1 - One or more scenarios are invalid
  2 - Command error (missing directory, no scenario files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := requireDir(dir, "scenarios"); err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}

	files, err := FindScenarioFiles(dir, "")
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		msg := fmt.Sprintf("no scenario files found in %s", dir)
		_ = formatter.Error(ErrCodeNoFiles, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), dir)

	result := ValidationResult{Valid: true, Scenarios: make([]ScenarioStatus, 0, len(files))}
	for _, file := range files {
		s, err := harness.LoadScenario(file)
		if err != nil {
			result.Valid = false
			result.Scenarios = append(result.Scenarios, ScenarioStatus{File: file})
			result.Errors = append(result.Errors, ValidationError{
				File:    file,
				Code:    ErrCodeInvalid,
				Message: err.Error(),
			})
			opts.logger().Debug("scenario invalid", "file", file, "error", err)
			continue
		}
		result.Scenarios = append(result.Scenarios, ScenarioStatus{File: file, Name: s.Name, Valid: true})
	}

	if !result.Valid {
		msg := fmt.Sprintf("%d of %d scenario(s) invalid", len(result.Errors), len(files))
		if opts.Format == "json" {
			_ = formatter.Report(result, ErrCodeInvalid, msg)
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

func (r ValidationResult) text() string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		if s.Valid {
			fmt.Fprintf(&b, "✓ %s (%s)\n", s.Name, s.File)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "✗ %s\n  %s\n", e.File, e.Message)
	}
	if r.Valid {
		fmt.Fprintf(&b, "\n%d scenario(s) valid", len(r.Scenarios))
	} else {
		fmt.Fprintf(&b, "\n%d of %d scenario(s) invalid", len(r.Errors), len(r.Scenarios))
	}
	return b.String()
}
