// Package resolver maps an invoked command plus caller context onto the
// agents, skills, and rules that should shape each run. Skill candidates are
// ranked by tag overlap with a deterministic identifier tie-break so the
// composer's greedy trimming is reproducible.
package resolver

import (
	"sort"

	"go.uber.org/zap"

	"conduct/internal/logging"
	"conduct/internal/registry"
)

// ResolutionPlan is the resolved input for composing one agent's bundle.
type ResolutionPlan struct {
	Command *registry.CommandDefinition
	Agent   *registry.AgentDefinition

	// Skills are candidates in priority order: descending tag-overlap count,
	// then ascending identifier.
	Skills []RankedSkill

	// Rules are every always-on rule plus scoped rules whose tags intersect
	// the agent's, ordered by identifier.
	Rules []*registry.RuleDefinition
}

// RankedSkill pairs a candidate skill with its overlap score.
type RankedSkill struct {
	Skill   *registry.SkillDefinition
	Overlap int
}

// Resolver resolves invocations against a loaded registry.
type Resolver struct {
	reg *registry.Registry
}

// New creates a resolver over the registry.
func New(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve produces the plan for a single agent. The command's target agent
// is authoritative unless overrideAgent names a valid agent. extraTags
// (detected project attributes and the like) widen skill and scoped-rule
// matching.
func (r *Resolver) Resolve(commandID, overrideAgent string, extraTags []string) (*ResolutionPlan, error) {
	cmd, err := r.reg.Command(commandID)
	if err != nil {
		return nil, err
	}

	agentID := cmd.Agent
	if overrideAgent != "" {
		agentID = overrideAgent
	}
	return r.planFor(cmd, agentID, extraTags)
}

// ResolveAll produces one plan per fan-out target: the primary agent first,
// then each declared fan-out agent in order. An override replaces only the
// primary target. Any unknown agent fails the whole invocation before
// dispatch.
func (r *Resolver) ResolveAll(commandID, overrideAgent string, extraTags []string) ([]*ResolutionPlan, error) {
	cmd, err := r.reg.Command(commandID)
	if err != nil {
		return nil, err
	}

	primary := cmd.Agent
	if overrideAgent != "" {
		primary = overrideAgent
	}

	targets := append([]string{primary}, cmd.FanOut...)
	seen := make(map[string]bool, len(targets))

	plans := make([]*ResolutionPlan, 0, len(targets))
	for _, agentID := range targets {
		if seen[agentID] {
			continue
		}
		seen[agentID] = true

		plan, err := r.planFor(cmd, agentID, extraTags)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (r *Resolver) planFor(cmd *registry.CommandDefinition, agentID string, extraTags []string) (*ResolutionPlan, error) {
	agent, err := r.reg.Agent(agentID)
	if err != nil {
		return nil, err
	}

	tags := mergeTags(agent.Tags, extraTags)
	skills := r.rankSkills(tags)
	rules := r.matchRules(tags)

	logging.Get(logging.CategoryResolve).Debug("resolved plan",
		zap.String("command", cmd.ID),
		zap.String("agent", agent.ID),
		zap.Int("skills", len(skills)),
		zap.Int("rules", len(rules)))

	return &ResolutionPlan{
		Command: cmd,
		Agent:   agent,
		Skills:  skills,
		Rules:   rules,
	}, nil
}

// rankSkills collects every skill sharing at least one tag and orders by
// descending overlap count, then identifier.
func (r *Resolver) rankSkills(tags []string) []RankedSkill {
	overlap := make(map[string]int)
	for _, tag := range tags {
		for _, id := range r.reg.SkillsByTag(tag) {
			overlap[id]++
		}
	}

	ranked := make([]RankedSkill, 0, len(overlap))
	for id, count := range overlap {
		skill, ok := r.reg.Skill(id)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedSkill{Skill: skill, Overlap: count})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Overlap != ranked[j].Overlap {
			return ranked[i].Overlap > ranked[j].Overlap
		}
		return ranked[i].Skill.ID < ranked[j].Skill.ID
	})
	return ranked
}

// matchRules returns all always-on rules plus scoped rules intersecting the
// tags, deduplicated and ordered by identifier.
func (r *Resolver) matchRules(tags []string) []*registry.RuleDefinition {
	byID := make(map[string]*registry.RuleDefinition)
	for _, rule := range r.reg.AlwaysOnRules() {
		byID[rule.ID] = rule
	}
	for _, tag := range tags {
		for _, id := range r.reg.RulesByTag(tag) {
			if rule, ok := r.reg.Rule(id); ok {
				byID[rule.ID] = rule
			}
		}
	}

	out := make([]*registry.RuleDefinition, 0, len(byID))
	for _, rule := range byID {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mergeTags unions agent tags with caller-supplied tags, preserving agent
// tag order first. Agent tags are normalized at load time; caller tags
// arrive raw from the CLI and get the same treatment before matching.
func mergeTags(agentTags, extraTags []string) []string {
	extraTags = registry.NormalizeTags(extraTags)
	seen := make(map[string]bool, len(agentTags)+len(extraTags))
	out := make([]string, 0, len(agentTags)+len(extraTags))
	for _, set := range [][]string{agentTags, extraTags} {
		for _, tag := range set {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
