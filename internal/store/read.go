package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/roach88/marbles/internal/marble"
)

// ReadRun retrieves a run with its frames and subscription windows.
// The returned error wraps sql.ErrNoRows if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, scenario, pass, digest, errors
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		return Run{}, errors.Wrapf(err, "read run %s", id)
	}

	if run.Expectations, err = s.readExpectations(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Sources, err = s.readSources(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns run headers (no frames or windows) ordered by seq.
// An empty scenario lists every run.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `
		SELECT seq, id, scenario, pass, digest, errors
		FROM runs
		ORDER BY seq ASC
	`
	args := []any{}
	if scenario != "" {
		query = `
			SELECT seq, id, scenario, pass, digest, errors
			FROM runs
			WHERE scenario = ?
			ORDER BY seq ASC
		`
		args = append(args, scenario)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

// LatestRun returns the most recent run of a scenario, with frames and
// windows. The returned error wraps sql.ErrNoRows if there is none.
func (s *Store) LatestRun(ctx context.Context, scenario string) (Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		WHERE scenario = ?
		ORDER BY seq DESC
		LIMIT 1
	`, scenario).Scan(&id)
	if err != nil {
		return Run{}, errors.Wrapf(err, "latest run of %s", scenario)
	}
	return s.ReadRun(ctx, id)
}

func (s *Store) readExpectations(ctx context.Context, runID string) ([]ExpectationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, name, pass
		FROM expectations
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query expectations")
	}
	defer rows.Close()

	var out []ExpectationRecord
	for rows.Next() {
		var (
			idx  int
			rec  ExpectationRecord
			pass int
		)
		if err := rows.Scan(&idx, &rec.Name, &pass); err != nil {
			return nil, errors.Wrap(err, "scan expectation")
		}
		rec.Pass = pass != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate expectations")
	}

	frames, err := s.readFrames(ctx, runID)
	if err != nil {
		return nil, err
	}
	for idx, fs := range frames {
		if idx < len(out) {
			out[idx].Frames = fs
		}
	}
	return out, nil
}

func (s *Store) readFrames(ctx context.Context, runID string) (map[int][]marble.Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT expectation_idx, tick, kind, payload
		FROM frames
		WHERE run_id = ?
		ORDER BY expectation_idx ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query frames")
	}
	defer rows.Close()

	out := make(map[int][]marble.Frame)
	for rows.Next() {
		var (
			idx     int
			tick    int64
			kind    string
			payload sql.NullString
		)
		if err := rows.Scan(&idx, &tick, &kind, &payload); err != nil {
			return nil, errors.Wrap(err, "scan frame")
		}
		f, err := unmarshalFrame(tick, kind, payload)
		if err != nil {
			return nil, err
		}
		out[idx] = append(out[idx], f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate frames")
	}
	return out, nil
}

func (s *Store) readSources(ctx context.Context, runID string) ([]SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.idx, s.name, w.subscribe_tick, w.unsubscribe_tick
		FROM sources s
		LEFT JOIN subscriptions w ON w.run_id = s.run_id AND w.source_idx = s.idx
		WHERE s.run_id = ?
		ORDER BY s.idx ASC, w.idx ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query sources")
	}
	defer rows.Close()

	var out []SourceRecord
	last := -1
	for rows.Next() {
		var (
			idx         int
			name        string
			subscribe   sql.NullInt64
			unsubscribe sql.NullInt64
		)
		if err := rows.Scan(&idx, &name, &subscribe, &unsubscribe); err != nil {
			return nil, errors.Wrap(err, "scan source")
		}
		if idx != last {
			out = append(out, SourceRecord{Name: name})
			last = idx
		}
		if subscribe.Valid {
			cur := &out[len(out)-1]
			cur.Windows = append(cur.Windows, marble.Window{
				Subscribe:   subscribe.Int64,
				Unsubscribe: tickFromNull(unsubscribe),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sources")
	}
	return out, nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		pass       int
		errorsJSON string
	)
	if err := row.Scan(&run.Seq, &run.ID, &run.Scenario, &pass, &run.Digest, &errorsJSON); err != nil {
		return Run{}, err
	}
	run.Pass = pass != 0

	msgs, err := unmarshalErrors(errorsJSON)
	if err != nil {
		return Run{}, err
	}
	run.Errors = msgs
	return run, nil
}
