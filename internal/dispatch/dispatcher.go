package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"conduct/internal/logging"
)

// Dispatcher runs execution requests concurrently through a bounded pool.
type Dispatcher struct {
	runner        Runner
	maxConcurrent int
}

// New creates a dispatcher. maxConcurrent bounds simultaneous runs; values
// below one are clamped to one.
func New(runner Runner, maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{runner: runner, maxConcurrent: maxConcurrent}
}

// Dispatch executes all requests and blocks until every run is terminal,
// which makes its return the invocation's join barrier. Results are in
// request order. Sibling runs are isolated: a failed, timed-out, or
// cancelled run never aborts the others. Cancelling ctx propagates to every
// run still in flight.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []*ExecutionRequest) []*ExecutionResult {
	log := logging.Get(logging.CategoryDispatch)
	results := make([]*ExecutionResult, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(d.maxConcurrent)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = d.execute(ctx, req)
			return nil
		})
	}

	// Join barrier: merge must only see terminal states.
	_ = g.Wait()

	log.Debug("dispatch complete", zap.Int("runs", len(reqs)))
	return results
}

// execute drives one request through its state machine.
func (d *Dispatcher) execute(ctx context.Context, req *ExecutionRequest) *ExecutionResult {
	log := logging.Get(logging.CategoryDispatch)

	r := newRun(req)
	result := &ExecutionResult{
		RunID:   req.RunID,
		AgentID: req.AgentID,
		Started: time.Now(),
	}

	// Cancelled while queued behind the concurrency limit.
	if ctx.Err() != nil {
		_ = r.transition(StateCancelled)
		result.State = StateCancelled
		result.Err = ctx.Err()
		result.Ended = time.Now()
		return result
	}

	if err := r.transition(StateRunning); err != nil {
		result.State = StateFailed
		result.Err = err
		result.Ended = time.Now()
		return result
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	output, err := d.runner.Run(runCtx, req)
	result.Output = output
	result.Ended = time.Now()

	state := classify(ctx, runCtx, err)
	_ = r.transition(state)
	result.State = state
	if state != StateSucceeded {
		result.Err = err
	}

	log.Debug("run finished",
		zap.String("run_id", req.RunID),
		zap.String("agent", req.AgentID),
		zap.String("state", string(state)),
		zap.Duration("elapsed", result.Ended.Sub(result.Started)))

	return result
}

// classify maps a runner outcome onto a terminal state. Parent cancellation
// wins over the per-run deadline so an aborted invocation reports Cancelled,
// not TimedOut.
func classify(parent, runCtx context.Context, err error) State {
	if err == nil {
		return StateSucceeded
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return StateCancelled
	}
	if errors.Is(parent.Err(), context.DeadlineExceeded) ||
		errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return StateTimedOut
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		return StateCancelled
	}
	return StateFailed
}
