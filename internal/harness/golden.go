package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"

	"github.com/roach88/marbles/internal/marble"
	"github.com/roach88/marbles/internal/value"
)

// GoldenDir is where RunWithGolden and AssertGolden keep fixtures,
// relative to the test's package directory.
const GoldenDir = "testdata/golden"

// Snapshot converts a result into plain data suitable for canonical JSON:
//
//	{"scenario": name,
//	 "expectations": [{"name": ..., "frames": [{"tick": 1, "kind": "next", "value": ...}]}],
//	 "subscriptions": {"source": [{"subscribe": 0, "unsubscribe": 3}]}}
//
// Error frames carry the error message. Payloads that are not valid
// canonical values are stored as their fmt representation.
func Snapshot(name string, res *Result) map[string]any {
	exps := make([]any, len(res.Expectations))
	for i, e := range res.Expectations {
		frames := make([]any, len(e.Actual))
		for j, f := range e.Actual {
			frames[j] = snapshotFrame(f)
		}
		exps[i] = map[string]any{
			"name":   e.Name,
			"frames": frames,
		}
	}

	subs := make(map[string]any, len(res.Sources))
	for _, src := range res.Sources {
		windows := make([]any, len(src.Windows))
		for i, w := range src.Windows {
			windows[i] = snapshotWindow(w)
		}
		subs[src.Name] = windows
	}

	return map[string]any{
		"scenario":      name,
		"expectations":  exps,
		"subscriptions": subs,
	}
}

func snapshotFrame(f marble.Frame) map[string]any {
	out := map[string]any{
		"tick": f.Tick,
		"kind": f.Kind.String(),
	}
	switch f.Kind {
	case marble.KindNext:
		v, err := value.From(f.Value)
		if err != nil {
			v = value.String(fmt.Sprint(f.Value))
		}
		out["value"] = v
	case marble.KindError:
		msg := "<nil>"
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out["error"] = msg
	}
	return out
}

func snapshotWindow(w marble.Window) map[string]any {
	out := map[string]any{}
	if w.Subscribe != marble.Never {
		out["subscribe"] = w.Subscribe
	}
	if w.Unsubscribe != marble.Never {
		out["unsubscribe"] = w.Unsubscribe
	}
	return out
}

// SnapshotJSON is Snapshot encoded as canonical JSON.
func SnapshotJSON(name string, res *Result) ([]byte, error) {
	data, err := value.MarshalCanonical(Snapshot(name, res))
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return data, nil
}

// Digest is the content hash of a result's snapshot.
func Digest(name string, res *Result) (string, error) {
	data, err := SnapshotJSON(name, res)
	if err != nil {
		return "", err
	}
	return value.Hash(value.DomainSnapshot, data), nil
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden. Regenerate fixtures with
//
//	go test ./internal/harness -update
//
// Expectation failures are returned, not reported, so tests can pin the
// snapshot of a deliberately failing scenario.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	res, err := RunScenario(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, res); err != nil {
		return nil, err
	}
	return res, res.Err()
}

// AssertGolden compares a result's snapshot against a golden file.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()

	data, err := SnapshotJSON(name, res)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenMismatchError reports a snapshot that differs from its golden file.
type GoldenMismatchError struct {
	Path     string
	Expected []byte
	Actual   []byte
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("snapshot differs from %s\n  golden: %s\n  actual: %s", e.Path, e.Expected, e.Actual)
}

// ErrGoldenMissing is returned by CheckGolden when the golden file does not
// exist and update is false.
var ErrGoldenMissing = errors.New("golden file missing")

// CheckGolden compares data with the golden file at path outside of a
// test binary. With update set, the file is (re)written instead.
func CheckGolden(path string, data []byte, update bool) error {
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.Wrap(err, "create golden dir")
		}
		return errors.Wrap(os.WriteFile(path, data, 0o644), "write golden file")
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.Wrap(ErrGoldenMissing, path)
	}
	if err != nil {
		return errors.Wrap(err, "read golden file")
	}
	if !bytes.Equal(want, data) {
		return &GoldenMismatchError{Path: path, Expected: want, Actual: data}
	}
	return nil
}
