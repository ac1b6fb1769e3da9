// Package engine wires the registry, resolver, composer, dispatcher, and
// aggregator into the invocation pipeline: one command in, one merged report
// out.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"conduct/internal/aggregate"
	"conduct/internal/compose"
	"conduct/internal/dispatch"
	"conduct/internal/logging"
	"conduct/internal/registry"
	"conduct/internal/resolver"
)

// Options configure an engine instance.
type Options struct {
	// CeilingTokens is the bundle size ceiling.
	CeilingTokens int
	// MaxConcurrent bounds simultaneous runs.
	MaxConcurrent int
	// DefaultTimeout applies to runs whose command declares none.
	DefaultTimeout time.Duration
	// TimeoutOverride, when positive, wins over both DefaultTimeout and
	// command-declared timeouts for every run of the invocation.
	TimeoutOverride time.Duration
	// Runner executes composed bundles.
	Runner dispatch.Runner
}

// Invocation is one user-level command invocation.
type Invocation struct {
	Command string
	// Args is the free-form argument string forwarded to every run.
	Args string
	// ExtraTags are caller-supplied context tags widening skill and rule
	// matching.
	ExtraTags []string
	// OverrideAgent, when set, replaces the command's primary target.
	OverrideAgent string
}

// Engine executes invocations against an immutable registry.
type Engine struct {
	resolver        *resolver.Resolver
	composer        *compose.Composer
	dispatcher      *dispatch.Dispatcher
	defaultTimeout  time.Duration
	timeoutOverride time.Duration
}

// New assembles an engine over a loaded registry.
func New(reg *registry.Registry, opts Options) *Engine {
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Engine{
		resolver:        resolver.New(reg),
		composer:        compose.New(opts.CeilingTokens),
		dispatcher:      dispatch.New(opts.Runner, opts.MaxConcurrent),
		defaultTimeout:  timeout,
		timeoutOverride: opts.TimeoutOverride,
	}
}

// Invoke resolves, composes, dispatches, and aggregates one invocation.
//
// Resolution and composition errors abort the invocation before any run
// starts and are returned as errors. Execution failures never become errors
// here: they are reported per agent inside the report, and the caller
// decides what a partial or failed status means for its exit code.
func (e *Engine) Invoke(ctx context.Context, inv Invocation) (*aggregate.Report, error) {
	log := logging.Get(logging.CategoryDispatch)
	invocationID := uuid.NewString()

	plans, err := e.resolver.ResolveAll(inv.Command, inv.OverrideAgent, inv.ExtraTags)
	if err != nil {
		return nil, err
	}

	// Compose every bundle before dispatching anything: an infeasible
	// budget on any fan-out target aborts the whole invocation.
	reqs := make([]*dispatch.ExecutionRequest, 0, len(plans))
	bundles := make(map[string]*compose.ContextBundle, len(plans))
	for _, plan := range plans {
		bundle, err := e.composer.Compose(plan)
		if err != nil {
			return nil, fmt.Errorf("compose bundle for agent %s: %w", plan.Agent.ID, err)
		}

		timeout, err := e.runTimeout(plan.Command)
		if err != nil {
			return nil, err
		}

		req := &dispatch.ExecutionRequest{
			RunID:   uuid.NewString(),
			AgentID: plan.Agent.ID,
			Bundle:  bundle,
			Args:    inv.Args,
			Timeout: timeout,
		}
		reqs = append(reqs, req)
		bundles[req.RunID] = bundle
	}

	log.Info("dispatching invocation",
		zap.String("invocation_id", invocationID),
		zap.String("command", inv.Command),
		zap.Int("fan_out", len(reqs)))

	started := time.Now()
	results := e.dispatcher.Dispatch(ctx, reqs)

	return aggregate.Merge(invocationID, inv.Command, results, bundles, time.Since(started)), nil
}

// runTimeout picks the caller's override, then the command's declared
// timeout, then the default.
func (e *Engine) runTimeout(cmd *registry.CommandDefinition) (time.Duration, error) {
	if e.timeoutOverride > 0 {
		return e.timeoutOverride, nil
	}
	if cmd.Timeout == "" {
		return e.defaultTimeout, nil
	}
	d, err := time.ParseDuration(cmd.Timeout)
	if err != nil {
		return 0, fmt.Errorf("command %s: invalid timeout %q: %w", cmd.ID, cmd.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("command %s: timeout must be positive, got %s", cmd.ID, d)
	}
	return d, nil
}
