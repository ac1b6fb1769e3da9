package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"conduct/internal/compose"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testBundle() *compose.ContextBundle {
	return &compose.ContextBundle{
		Blocks: []compose.Block{
			{Kind: compose.BlockPersona, SourceID: "agent", Text: "persona text"},
		},
	}
}

func req(id, agent string, timeout time.Duration) *ExecutionRequest {
	return &ExecutionRequest{
		RunID:   id,
		AgentID: agent,
		Bundle:  testBundle(),
		Timeout: timeout,
	}
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	for _, s := range []State{StateSucceeded, StateFailed, StateTimedOut, StateCancelled} {
		assert.True(t, s.Terminal(), string(s))
	}
}

func TestRun_Transitions(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		r := newRun(req("r1", "a", 0))
		assert.Equal(t, StatePending, r.State())
		require.NoError(t, r.transition(StateRunning))
		require.NoError(t, r.transition(StateSucceeded))
		assert.Equal(t, StateSucceeded, r.State())
	})

	t.Run("terminal state latches", func(t *testing.T) {
		r := newRun(req("r1", "a", 0))
		require.NoError(t, r.transition(StateRunning))
		require.NoError(t, r.transition(StateFailed))
		assert.Error(t, r.transition(StateCancelled))
		assert.Equal(t, StateFailed, r.State())
	})

	t.Run("cancel before start", func(t *testing.T) {
		r := newRun(req("r1", "a", 0))
		require.NoError(t, r.transition(StateCancelled))
	})

	t.Run("cannot skip running to success", func(t *testing.T) {
		r := newRun(req("r1", "a", 0))
		assert.Error(t, r.transition(StateSucceeded))
	})
}

func TestDispatch_AllSucceed(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, req *ExecutionRequest) (string, error) {
		return "output from " + req.AgentID, nil
	})

	d := New(runner, 4)
	results := d.Dispatch(context.Background(), []*ExecutionRequest{
		req("r1", "alpha", time.Second),
		req("r2", "beta", time.Second),
	})

	require.Len(t, results, 2)
	// Results keep request order regardless of completion order.
	assert.Equal(t, "alpha", results[0].AgentID)
	assert.Equal(t, "beta", results[1].AgentID)
	for _, res := range results {
		assert.Equal(t, StateSucceeded, res.State)
		assert.Equal(t, "output from "+res.AgentID, res.Output)
		assert.NoError(t, res.Err)
	}
}

func TestDispatch_SiblingIsolation(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, req *ExecutionRequest) (string, error) {
		if req.AgentID == "flaky" {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	d := New(runner, 4)
	results := d.Dispatch(context.Background(), []*ExecutionRequest{
		req("r1", "flaky", time.Second),
		req("r2", "steady", time.Second),
	})

	assert.Equal(t, StateFailed, results[0].State)
	assert.EqualError(t, results[0].Err, "boom")
	assert.Equal(t, StateSucceeded, results[1].State)
	assert.Equal(t, "ok", results[1].Output)
}

func TestDispatch_TimeoutDoesNotAffectSiblings(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, req *ExecutionRequest) (string, error) {
		if req.AgentID == "slow" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast done", nil
	})

	d := New(runner, 4)
	results := d.Dispatch(context.Background(), []*ExecutionRequest{
		req("r1", "slow", 20*time.Millisecond),
		req("r2", "fast", time.Second),
	})

	assert.Equal(t, StateTimedOut, results[0].State)
	assert.Error(t, results[0].Err)
	assert.Equal(t, StateSucceeded, results[1].State)
	assert.Equal(t, "fast done", results[1].Output)
}

func TestDispatch_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	quickDone := make(chan struct{})
	runner := RunnerFunc(func(runCtx context.Context, req *ExecutionRequest) (string, error) {
		if req.AgentID == "quick" {
			close(quickDone)
			return "done before cancel", nil
		}
		// Only cancel once the sibling has reached its terminal state.
		<-quickDone
		cancel()
		<-runCtx.Done()
		return "", runCtx.Err()
	})
	defer cancel()

	d := New(runner, 4)
	results := d.Dispatch(ctx, []*ExecutionRequest{
		req("r1", "quick", time.Second),
		req("r2", "blocked", time.Second),
	})

	// The run that finished before cancellation keeps its terminal state.
	assert.Equal(t, StateSucceeded, results[0].State)
	assert.Equal(t, StateCancelled, results[1].State)
}

func TestDispatch_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := RunnerFunc(func(ctx context.Context, req *ExecutionRequest) (string, error) {
		t.Error("runner must not be invoked for a cancelled invocation")
		return "", nil
	})

	results := New(runner, 1).Dispatch(ctx, []*ExecutionRequest{req("r1", "a", time.Second)})
	assert.Equal(t, StateCancelled, results[0].State)
}

func TestDispatch_BoundedConcurrency(t *testing.T) {
	var active, peak int32
	runner := RunnerFunc(func(ctx context.Context, req *ExecutionRequest) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return "", nil
	})

	var reqs []*ExecutionRequest
	for i := 0; i < 8; i++ {
		reqs = append(reqs, req(fmt.Sprintf("r%d", i), "a", time.Second))
	}

	New(runner, 2).Dispatch(context.Background(), reqs)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix runner binaries")
	}

	t.Run("requires a command", func(t *testing.T) {
		_, err := NewExecRunner("", nil)
		assert.Error(t, err)
	})

	t.Run("streams bundle on stdin", func(t *testing.T) {
		runner, err := NewExecRunner("cat", nil)
		require.NoError(t, err)

		out, err := runner.Run(context.Background(), req("r1", "a", 0))
		require.NoError(t, err)
		assert.Equal(t, "persona text", out)
	})

	t.Run("surfaces stderr on failure", func(t *testing.T) {
		runner, err := NewExecRunner("sh", []string{"-c", "echo nope >&2; exit 3"})
		require.NoError(t, err)

		_, err = runner.Run(context.Background(), req("r1", "a", 0))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("cancelled context kills the process", func(t *testing.T) {
		runner, err := NewExecRunner("sleep", []string{"60"})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err = runner.Run(ctx, req("r1", "a", 0))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
