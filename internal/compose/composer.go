// Package compose assembles the context bundle for one run: mandatory rules
// and persona first, then skill material under progressive disclosure and a
// fixed token ceiling. Composition is a pure function of its inputs, so
// identical plans and ceilings yield byte-identical bundles.
package compose

import (
	"go.uber.org/zap"

	"conduct/internal/logging"
	"conduct/internal/registry"
	"conduct/internal/resolver"
)

// Composer builds bundles against a fixed ceiling.
type Composer struct {
	budgeter Budgeter
}

// New creates a composer with the given token ceiling.
func New(ceiling int) *Composer {
	return &Composer{budgeter: Budgeter{Ceiling: ceiling}}
}

// Ceiling returns the configured token ceiling.
func (c *Composer) Ceiling() int {
	return c.budgeter.Ceiling
}

// Compose assembles the bundle for one resolution plan.
//
// Order: rules, agent persona, inline command instructions, skill summaries
// in the plan's priority order, then skill detail sections in the same order.
// Mandatory content over the ceiling fails with BudgetInfeasibleError; every
// rejected optional block lands in the trimming log.
func (c *Composer) Compose(plan *resolver.ResolutionPlan) (*ContextBundle, error) {
	log := logging.Get(logging.CategoryCompose)

	bundle := &ContextBundle{
		CommandID: plan.Command.ID,
		AgentID:   plan.Agent.ID,
		Ceiling:   c.budgeter.Ceiling,
	}

	// Mandatory content: never trimmed, never reordered.
	for _, rule := range plan.Rules {
		bundle.push(Block{Kind: BlockRule, SourceID: rule.ID, Text: rule.Text})
	}
	bundle.push(Block{Kind: BlockPersona, SourceID: plan.Agent.ID, Text: plan.Agent.Persona})
	if plan.Command.Instructions != "" {
		bundle.push(Block{Kind: BlockInstructions, SourceID: plan.Command.ID, Text: plan.Command.Instructions})
	}

	if bundle.Total > c.budgeter.Ceiling {
		log.Warn("mandatory content exceeds ceiling",
			zap.String("command", plan.Command.ID),
			zap.String("agent", plan.Agent.ID),
			zap.Int("mandatory_tokens", bundle.Total),
			zap.Int("ceiling", c.budgeter.Ceiling))
		return nil, &BudgetInfeasibleError{
			MandatoryTokens: bundle.Total,
			Ceiling:         c.budgeter.Ceiling,
		}
	}

	// Optional content is accepted greedily in the plan's priority order
	// until the first block that would exceed the ceiling; acceptance then
	// stops for good. The stop makes the included set a prefix of a fixed
	// sequence, so shrinking the ceiling can only shrink the set.
	exhausted := false

	// First pass: skill summaries.
	accepted := make([]*registry.SkillDefinition, 0, len(plan.Skills))
	for _, rs := range plan.Skills {
		skill := rs.Skill
		summary := Block{Kind: BlockSkillSummary, SourceID: skill.ID, Text: skill.Summary}

		if exhausted || c.budgeter.Decide(bundle.Total, BlockSkillSummary, EstimateTokens(summary.Text)) == Reject {
			exhausted = true
			bundle.trim(summary.SourceID, BlockSkillSummary, ReasonOverBudget)
			for _, section := range skill.Sections {
				bundle.trim(detailID(skill.ID, section.Title), BlockSkillDetail, ReasonSummaryRejected)
			}
			continue
		}

		bundle.push(summary)
		accepted = append(accepted, skill)
	}

	// Second pass: detail sections for accepted summaries, same order.
	for _, skill := range accepted {
		for _, section := range skill.Sections {
			detail := Block{
				Kind:     BlockSkillDetail,
				SourceID: detailID(skill.ID, section.Title),
				Text:     renderSection(section),
			}
			if exhausted || c.budgeter.Decide(bundle.Total, BlockSkillDetail, EstimateTokens(detail.Text)) != Accept {
				exhausted = true
				bundle.trim(detail.SourceID, BlockSkillDetail, ReasonOverBudget)
				continue
			}
			bundle.push(detail)
		}
	}

	bundle.Fingerprint = fingerprint(bundle.Render())

	log.Debug("bundle composed",
		zap.String("command", plan.Command.ID),
		zap.String("agent", plan.Agent.ID),
		zap.Int("blocks", len(bundle.Blocks)),
		zap.Int("total_tokens", bundle.Total),
		zap.Int("ceiling", bundle.Ceiling),
		zap.Int("trimmed", len(bundle.TrimLog)))

	return bundle, nil
}

// push appends a block and accounts for its size.
func (b *ContextBundle) push(block Block) {
	block.Tokens = EstimateTokens(block.Text)
	b.Blocks = append(b.Blocks, block)
	b.Total += block.Tokens
}

// trim records an excluded block.
func (b *ContextBundle) trim(sourceID string, kind BlockKind, reason string) {
	b.TrimLog = append(b.TrimLog, TrimEntry{SourceID: sourceID, Kind: kind, Reason: reason})
}

// detailID names a detail block after its skill and section.
func detailID(skillID, title string) string {
	return skillID + "#" + title
}

// renderSection restores the section heading so the runner sees the skill
// document structure.
func renderSection(s registry.SkillSection) string {
	if s.Title == "" {
		return s.Body
	}
	if s.Body == "" {
		return "## " + s.Title
	}
	return "## " + s.Title + "\n" + s.Body
}
