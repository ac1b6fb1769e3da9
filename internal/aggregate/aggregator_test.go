package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduct/internal/compose"
	"conduct/internal/dispatch"
)

func result(runID, agent string, state dispatch.State, output string, err error) *dispatch.ExecutionResult {
	started := time.Now()
	return &dispatch.ExecutionResult{
		RunID:   runID,
		AgentID: agent,
		State:   state,
		Output:  output,
		Err:     err,
		Started: started,
		Ended:   started.Add(50 * time.Millisecond),
	}
}

func TestMerge_AllSucceeded(t *testing.T) {
	results := []*dispatch.ExecutionResult{
		result("r1", "reviewer", dispatch.StateSucceeded, "looks good", nil),
		result("r2", "security-reviewer", dispatch.StateSucceeded, "no issues", nil),
	}

	report := Merge("inv-1", "review", results, nil, time.Second)

	assert.Equal(t, StatusSuccess, report.Status)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "reviewer", report.Results[0].AgentID)
	assert.Equal(t, "looks good", report.Results[0].Output)
	assert.Empty(t, report.Results[0].Error)
	assert.Equal(t, time.Second, report.Elapsed)
}

func TestMerge_Partial(t *testing.T) {
	tests := []struct {
		name     string
		badState dispatch.State
	}{
		{"one failed", dispatch.StateFailed},
		{"one timed out", dispatch.StateTimedOut},
		{"one cancelled", dispatch.StateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := []*dispatch.ExecutionResult{
				result("r1", "good", dispatch.StateSucceeded, "fine", nil),
				result("r2", "bad", tt.badState, "", errors.New("went wrong")),
			}

			report := Merge("inv-1", "review", results, nil, time.Second)

			assert.Equal(t, StatusPartial, report.Status)
			assert.Equal(t, "fine", report.Results[0].Output)
			assert.Equal(t, "went wrong", report.Results[1].Error)
			assert.Equal(t, tt.badState, report.Results[1].State)
		})
	}
}

func TestMerge_AllFailed(t *testing.T) {
	results := []*dispatch.ExecutionResult{
		result("r1", "a", dispatch.StateFailed, "", errors.New("x")),
		result("r2", "b", dispatch.StateTimedOut, "", errors.New("deadline")),
	}

	report := Merge("inv-1", "review", results, nil, time.Second)
	assert.Equal(t, StatusFailed, report.Status)
}

func TestMerge_NoRuns(t *testing.T) {
	report := Merge("inv-1", "review", nil, nil, 0)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Empty(t, report.Results)
}

func TestMerge_AttachesBundleMetadata(t *testing.T) {
	bundles := map[string]*compose.ContextBundle{
		"r1": {
			Fingerprint: "blake3:abc",
			TrimLog: []compose.TrimEntry{
				{SourceID: "big-skill", Kind: compose.BlockSkillSummary, Reason: compose.ReasonOverBudget},
			},
		},
		"r2": {Fingerprint: "blake3:def"},
	}
	results := []*dispatch.ExecutionResult{
		result("r1", "a", dispatch.StateSucceeded, "out", nil),
		result("r2", "b", dispatch.StateSucceeded, "out", nil),
	}

	report := Merge("inv-1", "review", results, bundles, time.Second)

	assert.Equal(t, "blake3:abc", report.Results[0].BundleFingerprint)
	assert.Equal(t, "blake3:def", report.Results[1].BundleFingerprint)

	// Only the bundle that actually trimmed something appears.
	require.Len(t, report.TrimLogs, 1)
	assert.Equal(t, "a", report.TrimLogs[0].AgentID)
	assert.Equal(t, "big-skill", report.TrimLogs[0].Entries[0].SourceID)
}
