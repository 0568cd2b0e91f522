package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const passingScenario = `name: pipe_map
sources:
  - name: source
    marbles: "-a-|"
    values: {a: 5}
expectations:
  - name: doubled
    source: source
    pipe:
      - map: [{from: 5, to: 10}]
    marbles: "-x-|"
    values: {x: 10}
subscriptions:
  - source: source
    marbles: ["^--!"]
`

const failingScenario = `name: wrong_tick
sources:
  - name: source
    marbles: "-a-|"
expectations:
  - name: late
    source: source
    marbles: "--a-|"
`

const invalidScenario = `name: broken
sources:
  - name: source
    marbles: "-(a"
expectations:
  - source: source
    marbles: "-a"
`

// pipeMapGolden is the snapshot of passingScenario.
const pipeMapGolden = `{"expectations":[{"frames":[{"kind":"next","tick":1,"value":10},{"kind":"complete","tick":3}],"name":"doubled"}],"scenario":"pipe_map","subscriptions":{"source":[{"subscribe":0,"unsubscribe":3}]}}`
