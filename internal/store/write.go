package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// WriteRun inserts a run with its expectations, frames and subscription
// windows in one transaction, and sets run.Seq from the assigned sequence.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing a run whose ID
// already exists changes nothing and returns the existing seq.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	errorsJSON, err := marshalErrors(run.Errors)
	if err != nil {
		return errors.Wrap(err, "write run")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "write run: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, pass, digest, errors)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		boolToInt(run.Pass),
		run.Digest,
		errorsJSON,
	)
	if err != nil {
		return errors.Wrap(err, "write run: insert")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "write run: rows affected")
	}
	if rowsAffected == 0 {
		if err := tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&run.Seq); err != nil {
			return errors.Wrap(err, "write run: query existing")
		}
		return nil
	}

	run.Seq, err = result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "write run: last insert id")
	}

	for i, e := range run.Expectations {
		if err := writeExpectation(ctx, tx, run.ID, i, e); err != nil {
			return errors.Wrapf(err, "write run: expectation %d", i)
		}
	}
	for i, src := range run.Sources {
		if err := writeSource(ctx, tx, run.ID, i, src); err != nil {
			return errors.Wrapf(err, "write run: source %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "write run: commit")
	}
	return nil
}

func writeExpectation(ctx context.Context, tx *sql.Tx, runID string, idx int, e ExpectationRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO expectations (run_id, idx, name, pass)
		VALUES (?, ?, ?, ?)
	`, runID, idx, e.Name, boolToInt(e.Pass))
	if err != nil {
		return err
	}

	for i, f := range e.Frames {
		payload, err := marshalPayload(f)
		if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO frames (run_id, expectation_idx, idx, tick, kind, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, idx, i, f.Tick, f.Kind.String(), payload)
		if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
	}
	return nil
}

func writeSource(ctx context.Context, tx *sql.Tx, runID string, idx int, src SourceRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sources (run_id, idx, name)
		VALUES (?, ?, ?)
	`, runID, idx, src.Name)
	if err != nil {
		return err
	}

	for i, w := range src.Windows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (run_id, source_idx, idx, subscribe_tick, unsubscribe_tick)
			VALUES (?, ?, ?, ?, ?)
		`, runID, idx, i, w.Subscribe, nullTick(w.Unsubscribe))
		if err != nil {
			return errors.Wrapf(err, "window %d", i)
		}
	}
	return nil
}
