package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes one request's opaque payload. Implementations must honor
// ctx cancellation and release resources before returning.
type Runner interface {
	Run(ctx context.Context, req *ExecutionRequest) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req *ExecutionRequest) (string, error)

func (f RunnerFunc) Run(ctx context.Context, req *ExecutionRequest) (string, error) {
	return f(ctx, req)
}

// ExecRunner executes runs as subprocesses. The rendered bundle arrives on
// stdin; the invocation's argument string is appended to the configured
// arguments. Run identity is exposed through the environment so runner
// binaries can correlate output.
type ExecRunner struct {
	Command string
	Args    []string
}

// NewExecRunner builds a subprocess runner.
func NewExecRunner(command string, args []string) (*ExecRunner, error) {
	if command == "" {
		return nil, fmt.Errorf("runner command not configured")
	}
	return &ExecRunner{Command: command, Args: args}, nil
}

// Run executes the configured command. Context cancellation kills the
// subprocess, which releases its resources.
func (r *ExecRunner) Run(ctx context.Context, req *ExecutionRequest) (string, error) {
	args := append(append([]string(nil), r.Args...), strings.Fields(req.Args)...)

	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Stdin = strings.NewReader(req.Bundle.Render())
	cmd.Env = append(os.Environ(),
		"CONDUCT_RUN_ID="+req.RunID,
		"CONDUCT_AGENT="+req.AgentID,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.String(), ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return stdout.String(), fmt.Errorf("runner %s: %w: %s", r.Command, err, detail)
		}
		return stdout.String(), fmt.Errorf("runner %s: %w", r.Command, err)
	}
	return stdout.String(), nil
}
