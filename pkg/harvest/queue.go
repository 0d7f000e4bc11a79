package harvest

import (
	"fmt"
	"sync"
)

// State is the phase of a harvest run
type State int

const (
	StateIdle State = iota
	StateAdmitting
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdmitting:
		return "admitting"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// admission is the result of offering a reference to the queue
type admission int

const (
	admitOK admission = iota
	admitDuplicate
	admitCapReached
	admitClosed
)

// queueState is the mutable state of one run. All reads and writes go
// through its mutex, and admit is the only operation that grows it.
type queueState struct {
	mu       sync.Mutex
	state    State
	seen     map[string]struct{}
	admitted int
	limit    int
}

func newQueueState(limit int) *queueState {
	return &queueState{
		state: StateIdle,
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// admit checks the cap and the dedup set, then records the key and counts
// it, as one step
func (q *queueState) admit(key string) admission {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StateAdmitting {
		return admitClosed
	}
	if q.admitted >= q.limit {
		return admitCapReached
	}
	if _, ok := q.seen[key]; ok {
		return admitDuplicate
	}
	q.seen[key] = struct{}{}
	q.admitted++
	return admitOK
}

// full reports whether the cap has been reached
func (q *queueState) full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.admitted >= q.limit
}

// advance moves the run forward one phase. Phases never go back.
func (q *queueState) advance(to State) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if to != q.state+1 {
		return fmt.Errorf("invalid transition %s -> %s", q.state, to)
	}
	q.state = to
	return nil
}

func (q *queueState) current() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *queueState) admittedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.admitted
}
