package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/marbles/internal/harness"
	"github.com/roach88/marbles/internal/marble"
)

// RootOptions holds global settings for all commands. After the root's
// PersistentPreRunE they reflect flags, MARBLES_* environment variables and
// the config file, in that order of precedence.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	MaxTicks   int64
	MaxActions int
	ErrorMatch string // "any" | "message" | "deep"
	Database   string

	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the marbles CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "marbles",
		Short: "Marble diagram test harness",
		Long: `Describe streams as marble diagrams and check them under virtual time.

Diagrams use one character per tick: '-' is an empty tick, letters and digits
are values, '#' is an error, '|' is completion, '(..)' groups frames at one
tick, and '^' / '!' mark subscription points.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cmd.Flags(), opts); err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if _, err := marble.ParseErrorMatch(opts.ErrorMatch); err != nil {
				return WrapExitError(ExitCommandError, "invalid error match", err)
			}
			if opts.MaxTicks < 0 {
				return NewExitError(ExitCommandError, "max-ticks must be non-negative")
			}
			if opts.MaxActions < 0 {
				return NewExitError(ExitCommandError, "max-actions must be non-negative")
			}
			opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./marbles.yaml if present)")
	cmd.PersistentFlags().Int64Var(&opts.MaxTicks, "max-ticks", 0, "virtual time bound for scenario runs (0 = unbounded)")
	cmd.PersistentFlags().IntVar(&opts.MaxActions, "max-actions", 0, "actions one scenario run may execute (0 = unbounded)")
	cmd.PersistentFlags().StringVar(&opts.ErrorMatch, "error-match", "message", "default error payload comparison (any|message|deep)")

	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// logger returns the configured logger, or a discarding one when the
// command runs without the root (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// harnessOptions translates the global settings into harness options.
func (o *RootOptions) harnessOptions() ([]harness.Option, error) {
	mode, err := marble.ParseErrorMatch(o.ErrorMatch)
	if err != nil {
		return nil, errors.Wrap(err, "error match")
	}
	return []harness.Option{
		harness.WithMaxTicks(o.MaxTicks),
		harness.WithMaxActions(o.MaxActions),
		harness.WithErrorMatch(mode),
		harness.WithLogger(o.logger()),
	}, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// newLogger builds the CLI's text logger: Info by default, Debug with
// --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
