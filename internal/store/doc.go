// Package store provides SQLite-backed history for marble scenario runs.
//
// Each run records:
//   - Runs: scenario name, pass flag, snapshot digest, failure messages
//   - Expectations: the frames each materializer recorded
//   - Sources: the subscription windows of every cold and hot source
//
// # Ordering
//
// Runs are ordered by seq, an autoincrement logical clock; frames and
// windows by their position in the run. Timestamps are never stored, so two
// runs of the same scenario differ only in id and seq.
//
// # Payloads
//
// Next payloads are stored as canonical JSON (see internal/value) and read
// back as native values with int64 integers. Error frames keep only the
// error message.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
