package engine

import "container/heap"

type actionState int

const (
	statePending actionState = iota
	stateExecuted
	stateCancelled
	stateDiscarded
)

// Action is a unit of work bound to a tick. Its due tick is fixed when it is
// scheduled.
type Action struct {
	due   int64
	seq   int64
	fn    func()
	state actionState
	index int // position in the heap while pending
	owner *Scheduler
}

// Due returns the tick the action is scheduled for.
func (a *Action) Due() int64 {
	return a.due
}

// Done reports whether the action has executed.
func (a *Action) Done() bool {
	a.owner.mu.Lock()
	defer a.owner.mu.Unlock()
	return a.state == stateExecuted
}

// Cancel withdraws a pending action. It returns false when the action has
// already executed, was cancelled, or was discarded by the tick limit.
func (a *Action) Cancel() bool {
	s := a.owner
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.state != statePending {
		return false
	}
	heap.Remove(&s.queue, a.index)
	a.state = stateCancelled
	a.fn = nil
	return true
}

// actionQueue is a min-heap ordered by (due, seq). seq is assigned from a
// counter at schedule time, which makes same-tick actions FIFO.
type actionQueue []*Action

func (q actionQueue) Len() int { return len(q) }

func (q actionQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q actionQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *actionQueue) Push(x any) {
	a := x.(*Action)
	a.index = len(*q)
	*q = append(*q, a)
}

func (q *actionQueue) Pop() any {
	old := *q
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*q = old[:n-1]
	return a
}
