package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/marbles/internal/marble"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with one expectation and one source.
func createTestRun(id, scenario string) *Run {
	return &Run{
		ID:       id,
		Scenario: scenario,
		Pass:     true,
		Digest:   "digest-" + id,
		Expectations: []ExpectationRecord{{
			Name:   "echo",
			Pass:   true,
			Frames: []marble.Frame{marble.Next(1, "a"), marble.Complete(3)},
		}},
		Sources: []SourceRecord{{
			Name:    "source",
			Windows: []marble.Window{{Subscribe: 0, Unsubscribe: 3}},
		}},
	}
}
