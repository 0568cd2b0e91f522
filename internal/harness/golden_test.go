package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marbles/internal/value"
)

func TestRunWithGolden_PipeMap(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "pipe_map.yaml"))
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_PipeMap -update
	res, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestSnapshot_Shape(t *testing.T) {
	s, err := DecodeScenario([]byte(`
name: shape
sources:
  - name: s
    marbles: "-a-#"
    values: {a: [1, "two", true]}
    error: boom
  - name: open
    marbles: "-b"
expectations:
  - {name: failing, source: s, marbles: "-a-#", values: {a: [1, "two", true]}}
  - {name: endless, source: open, marbles: "-b"}
`))
	require.NoError(t, err)

	res, err := RunScenario(s)
	require.NoError(t, err)
	require.True(t, res.Pass, "%v", res.Err())

	snap := Snapshot("shape", res)
	assert.Equal(t, "shape", snap["scenario"])

	exps := snap["expectations"].([]any)
	require.Len(t, exps, 2)
	frames := exps[0].(map[string]any)["frames"].([]any)
	require.Len(t, frames, 2)
	assert.Equal(t, "boom", frames[1].(map[string]any)["error"])
	assert.Equal(t, "error", frames[1].(map[string]any)["kind"])

	subs := snap["subscriptions"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"subscribe": int64(0), "unsubscribe": int64(3)}}, subs["s"])
	assert.Equal(t, []any{map[string]any{"subscribe": int64(0)}}, subs["open"],
		"an open window has no unsubscribe tick")

	data, err := SnapshotJSON("shape", res)
	require.NoError(t, err)
	assert.Equal(t,
		`{"expectations":[`+
			`{"frames":[{"kind":"next","tick":1,"value":[1,"two",true]},{"error":"boom","kind":"error","tick":3}],"name":"failing"},`+
			`{"frames":[{"kind":"next","tick":1,"value":"b"}],"name":"endless"}],`+
			`"scenario":"shape",`+
			`"subscriptions":{"open":[{"subscribe":0}],"s":[{"subscribe":0,"unsubscribe":3}]}}`,
		string(data))
}

func TestSnapshot_UnsupportedPayload(t *testing.T) {
	res, err := New().Execute(func(c *Context) {
		src := c.Cold("a|", map[string]any{"a": 1.5})
		c.ExpectObservable(src).ToBe("a|", map[string]any{"a": 1.5})
	})
	require.NoError(t, err)

	data, err := SnapshotJSON("float", res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":"1.5"`)
}

func TestDigest_Stable(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "pipe_map.yaml"))
	require.NoError(t, err)

	first, err := RunScenario(s)
	require.NoError(t, err)
	second, err := RunScenario(s)
	require.NoError(t, err)

	d1, err := Digest(s.Name, first)
	require.NoError(t, err)
	d2, err := Digest(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	data, err := SnapshotJSON(s.Name, first)
	require.NoError(t, err)
	assert.Equal(t, value.Hash(value.DomainSnapshot, data), d1)

	other, err := Digest("renamed", first)
	require.NoError(t, err)
	assert.NotEqual(t, d1, other)
}

func TestCheckGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "x.golden")
	data := []byte(`{"a":1}`)

	err := CheckGolden(path, data, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGoldenMissing))

	require.NoError(t, CheckGolden(path, data, true))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)

	require.NoError(t, CheckGolden(path, data, false))

	err = CheckGolden(path, []byte(`{"a":2}`), false)
	var mismatch *GoldenMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, path, mismatch.Path)
	assert.Equal(t, data, mismatch.Expected)
	assert.Contains(t, err.Error(), "snapshot differs from")
}
