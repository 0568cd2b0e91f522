package cli

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/marble"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Frames string   // JSON frame list; "-" reads stdin
	Values []string // k=v pairs used as labels
}

// RenderResult is the diagram produced by render.
type RenderResult struct {
	Diagram string `json:"diagram"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render frames as a marble diagram",
		Long: `Render a JSON list of frames back into a marble diagram.

Frames use the same shape that "parse --format json" prints:
  [{"tick": 1, "kind": "next", "value": 5}, {"tick": 3, "kind": "complete"}]

Values are labelled by reverse lookup in --value pairs; single-character
string payloads label themselves. Parsing the output yields the same ticks.

Examples:
  marbles render --frames '[{"tick":1,"kind":"next","value":"a"},{"tick":3,"kind":"complete"}]'
  marbles render --frames '[{"tick":500,"kind":"next","value":1}]' --value x=1
  marbles parse "-a|" --format json | jq .data.frames | marbles render --frames -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Frames, "frames", "", "frames as JSON, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("frames")
	cmd.Flags().StringArrayVar(&opts.Values, "value", nil, "label for a payload as key=value (repeatable)")

	return cmd
}

func runRender(opts *RenderOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	diagram, err := renderFrames(opts, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeRender, err.Error(), nil)
		return WrapExitError(ExitCommandError, "render failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(RenderResult{Diagram: diagram})
	}
	return formatter.Success(diagram)
}

func renderFrames(opts *RenderOptions, stdin io.Reader) (string, error) {
	data := []byte(opts.Frames)
	if opts.Frames == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
	}

	var in []FrameJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return "", errors.Wrap(err, "decode frames")
	}
	frames, err := fromFramesJSON(in)
	if err != nil {
		return "", err
	}

	values, err := parseValueFlags(opts.Values)
	if err != nil {
		return "", err
	}
	return marble.Render(frames, values)
}
