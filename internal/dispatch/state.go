// Package dispatch executes composed bundles as isolated concurrent runs.
// Each run moves through a small state machine and always reaches a terminal
// state; one run's failure, timeout, or cancellation never touches a sibling.
package dispatch

import (
	"fmt"
	"sync"
	"time"

	"conduct/internal/compose"
)

// State is a run's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// ExecutionRequest is one run against one agent's composed bundle.
type ExecutionRequest struct {
	RunID   string
	AgentID string
	Bundle  *compose.ContextBundle
	// Args is the free-form argument string passed through to the runner.
	Args string
	// Timeout is this run's deadline.
	Timeout time.Duration
}

// ExecutionResult is a run's terminal outcome.
type ExecutionResult struct {
	RunID   string
	AgentID string
	State   State
	// Output is the runner's payload on success, possibly partial otherwise.
	Output string
	// Err carries failure detail for failed, timed-out, or cancelled runs.
	Err     error
	Started time.Time
	Ended   time.Time
}

// run tracks one request's state. Transitions latch: once terminal, further
// transitions are rejected so a late cancellation cannot overwrite a result.
type run struct {
	req *ExecutionRequest

	mu    sync.Mutex
	state State
}

func newRun(req *ExecutionRequest) *run {
	return &run{req: req, state: StatePending}
}

func (r *run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// transition enforces Pending -> Running -> terminal.
func (r *run) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	valid := false
	switch {
	case r.state == StatePending && to == StateRunning:
		valid = true
	case r.state == StatePending && to == StateCancelled:
		// Cancelled before it ever started.
		valid = true
	case r.state == StateRunning && to.Terminal():
		valid = true
	}
	if !valid {
		return fmt.Errorf("invalid run transition %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}
