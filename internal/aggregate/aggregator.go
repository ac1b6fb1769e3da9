// Package aggregate merges the terminal results of one invocation's sibling
// runs into a single report. It never retries a run; retry policy belongs to
// the caller.
package aggregate

import (
	"time"

	"go.uber.org/zap"

	"conduct/internal/compose"
	"conduct/internal/dispatch"
	"conduct/internal/logging"
)

// Status is the invocation's overall outcome.
type Status string

const (
	// StatusSuccess means every run succeeded.
	StatusSuccess Status = "success"
	// StatusPartial means at least one run succeeded and at least one did
	// not. Timed-out and cancelled runs count as failures here.
	StatusPartial Status = "partial"
	// StatusFailed means no run succeeded.
	StatusFailed Status = "failed"
)

// AgentResult is one run's contribution to the report.
type AgentResult struct {
	AgentID string         `json:"agent_id"`
	RunID   string         `json:"run_id"`
	State   dispatch.State `json:"state"`
	Output  string         `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
	// BundleFingerprint ties the result to the exact bundle it ran against.
	BundleFingerprint string        `json:"bundle_fingerprint,omitempty"`
	Elapsed           time.Duration `json:"elapsed_ns"`
}

// TrimReport is the trimming log of one agent's bundle.
type TrimReport struct {
	AgentID string             `json:"agent_id"`
	Entries []compose.TrimEntry `json:"entries"`
}

// Report is the merged outcome of one invocation.
type Report struct {
	InvocationID string        `json:"invocation_id"`
	Command      string        `json:"command"`
	Status       Status        `json:"status"`
	Results      []AgentResult `json:"results"`
	// TrimLogs carries each bundle's trimming decisions, in run order, for
	// observability. Agents with nothing trimmed are omitted.
	TrimLogs []TrimReport  `json:"trim_logs,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Merge folds terminal run results into a report. Callers must only pass
// results after the dispatcher's join barrier, so every state is terminal.
// bundles maps run id to the composed bundle for fingerprints and trim logs.
func Merge(invocationID, command string, results []*dispatch.ExecutionResult,
	bundles map[string]*compose.ContextBundle, elapsed time.Duration) *Report {

	report := &Report{
		InvocationID: invocationID,
		Command:      command,
		Elapsed:      elapsed,
	}

	succeeded, finished := 0, 0
	for _, res := range results {
		ar := AgentResult{
			AgentID: res.AgentID,
			RunID:   res.RunID,
			State:   res.State,
			Output:  res.Output,
			Elapsed: res.Ended.Sub(res.Started),
		}
		if res.Err != nil {
			ar.Error = res.Err.Error()
		}

		if bundle, ok := bundles[res.RunID]; ok {
			ar.BundleFingerprint = bundle.Fingerprint
			if len(bundle.TrimLog) > 0 {
				report.TrimLogs = append(report.TrimLogs, TrimReport{
					AgentID: res.AgentID,
					Entries: bundle.TrimLog,
				})
			}
		}

		report.Results = append(report.Results, ar)
		finished++
		if res.State == dispatch.StateSucceeded {
			succeeded++
		}
	}

	switch {
	case finished > 0 && succeeded == finished:
		report.Status = StatusSuccess
	case succeeded > 0:
		report.Status = StatusPartial
	default:
		report.Status = StatusFailed
	}

	logging.Get(logging.CategoryAggregate).Info("invocation merged",
		zap.String("invocation_id", invocationID),
		zap.String("command", command),
		zap.String("status", string(report.Status)),
		zap.Int("runs", finished),
		zap.Int("succeeded", succeeded))

	return report
}
