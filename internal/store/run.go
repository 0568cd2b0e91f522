package store

import (
	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/harness"
	"github.com/roach88/marbles/internal/marble"
)

// Run is one recorded execution of a scenario.
type Run struct {
	// Seq is assigned by the store on write.
	Seq      int64
	ID       string
	Scenario string
	Pass     bool

	// Digest is the snapshot hash, see harness.Digest.
	Digest string

	// Errors holds the failure message of each failed expectation.
	Errors []string

	Expectations []ExpectationRecord
	Sources      []SourceRecord
}

// ExpectationRecord is what one materializer observed.
type ExpectationRecord struct {
	Name   string
	Pass   bool
	Frames []marble.Frame
}

// SourceRecord is the subscription log of one source.
type SourceRecord struct {
	Name    string
	Windows []marble.Window
}

// NewRun converts a harness result into a record with the given id.
func NewRun(id, scenario string, res *harness.Result) (Run, error) {
	digest, err := harness.Digest(scenario, res)
	if err != nil {
		return Run{}, errors.Wrap(err, "new run")
	}

	run := Run{
		ID:       id,
		Scenario: scenario,
		Pass:     res.Pass,
		Digest:   digest,
	}
	for _, f := range res.Failures {
		run.Errors = append(run.Errors, f.Error())
	}
	for _, e := range res.Expectations {
		run.Expectations = append(run.Expectations, ExpectationRecord{
			Name:   e.Name,
			Pass:   e.Pass,
			Frames: e.Actual,
		})
	}
	for _, src := range res.Sources {
		run.Sources = append(run.Sources, SourceRecord{
			Name:    src.Name,
			Windows: src.Windows,
		})
	}
	return run, nil
}
