package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// actionQuota counts the actions one Flush executes and enforces the
// scheduler's action limit.
//
// The tick bound cannot stop an action that keeps rescheduling itself at
// the current tick; the quota does.
type actionQuota struct {
	limit   int // zero means unbounded
	current int
}

func newActionQuota(limit int) *actionQuota {
	return &actionQuota{limit: limit}
}

// check counts one action and fails once the count passes the limit.
func (q *actionQuota) check(tick int64) error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return &ActionLimitError{
			Tick:     tick,
			Executed: q.current - 1,
			Limit:    q.limit,
		}
	}
	return nil
}

// ActionLimitError is returned by Flush when a drain would execute more
// actions than WithMaxActions allows. The action that hit the limit and
// everything after it stay queued.
type ActionLimitError struct {
	Tick     int64 // clock tick when the limit was hit
	Executed int   // actions executed by the drain
	Limit    int
}

func (e *ActionLimitError) Error() string {
	return fmt.Sprintf("action limit exceeded at tick %d: %d actions executed, limit %d",
		e.Tick, e.Executed, e.Limit)
}

// IsActionLimit reports whether err is, or wraps, an *ActionLimitError.
func IsActionLimit(err error) bool {
	var le *ActionLimitError
	return errors.As(err, &le)
}
