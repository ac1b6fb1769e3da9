package compose

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// BlockKind classifies a content block within a bundle.
type BlockKind string

const (
	BlockRule         BlockKind = "rule"
	BlockPersona      BlockKind = "persona"
	BlockInstructions BlockKind = "instructions"
	BlockSkillSummary BlockKind = "skill-summary"
	BlockSkillDetail  BlockKind = "skill-detail"
)

// Block is one content block of a composed bundle.
type Block struct {
	Kind BlockKind `json:"kind"`
	// SourceID identifies the originating definition. Detail blocks use
	// "<skill-id>#<section-title>".
	SourceID string `json:"source_id"`
	Tokens   int    `json:"tokens"`
	Text     string `json:"-"`
}

// Trim reasons recorded in the trimming log.
const (
	ReasonOverBudget      = "over budget"
	ReasonSummaryRejected = "summary rejected"
)

// TrimEntry records one block excluded during composition.
type TrimEntry struct {
	SourceID string    `json:"source_id"`
	Kind     BlockKind `json:"kind"`
	Reason   string    `json:"reason"`
}

// ContextBundle is the ordered, budget-constrained assembly for one run.
type ContextBundle struct {
	CommandID string      `json:"command_id"`
	AgentID   string      `json:"agent_id"`
	Blocks    []Block     `json:"blocks"`
	Total     int         `json:"total_tokens"`
	Ceiling   int         `json:"ceiling_tokens"`
	TrimLog   []TrimEntry `json:"trim_log,omitempty"`
	// Fingerprint is the blake3 hash of the rendered text. Two compositions
	// with identical inputs produce identical fingerprints.
	Fingerprint string `json:"fingerprint"`
}

// Render assembles the bundle text, blocks joined by blank lines.
func (b *ContextBundle) Render() string {
	parts := make([]string, 0, len(b.Blocks))
	for _, block := range b.Blocks {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ContainsBlock reports whether a block with the kind and source id is part
// of the bundle.
func (b *ContextBundle) ContainsBlock(kind BlockKind, sourceID string) bool {
	for _, block := range b.Blocks {
		if block.Kind == kind && block.SourceID == sourceID {
			return true
		}
	}
	return false
}

// fingerprint hashes the rendered text.
func fingerprint(text string) string {
	sum := blake3.Sum256([]byte(text))
	return "blake3:" + hex.EncodeToString(sum[:])
}
