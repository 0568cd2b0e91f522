// Package engine implements the virtual clock and the scheduler that drives
// every marble scenario.
//
// Time is a logical tick counter. Nothing in this package sleeps or reads
// the wall clock: the scheduler advances its clock straight to the tick of
// the next pending action, so a scenario spanning minutes of virtual time
// runs in microseconds.
//
// Ordering guarantees:
//   - Actions execute in ascending tick order.
//   - Actions due at the same tick execute in the order they were scheduled.
//   - The clock never moves backwards during a drain, and scheduling into the
//     past is rejected with a ScheduleViolationError.
//
// A Scheduler is owned by exactly one scenario and is not shared between
// runs.
package engine
