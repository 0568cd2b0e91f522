package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRunning is returned by Run when the scheduler is already
	// inside a Run call.
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrFlushing is returned by Flush when called from inside an action
	// that the same scheduler is executing.
	ErrFlushing = errors.New("scheduler is already flushing")
)

// ScheduleViolationError reports an attempt to schedule an action at a tick
// earlier than the clock's current tick.
type ScheduleViolationError struct {
	Due int64
	Now int64
}

func (e *ScheduleViolationError) Error() string {
	return fmt.Sprintf("cannot schedule action at tick %d: clock is already at tick %d", e.Due, e.Now)
}

// IsScheduleViolation reports whether err is, or wraps, a
// *ScheduleViolationError.
func IsScheduleViolation(err error) bool {
	var sv *ScheduleViolationError
	return errors.As(err, &sv)
}
