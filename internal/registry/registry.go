package registry

import "sort"

// Registry indexes all loaded definitions by identifier and by tag.
// It is never mutated after Load, so lookups need no locking.
type Registry struct {
	commands map[string]*CommandDefinition
	agents   map[string]*AgentDefinition
	skills   map[string]*SkillDefinition
	rules    map[string]*RuleDefinition

	agentsByTag map[string][]string
	skillsByTag map[string][]string
	rulesByTag  map[string][]string
}

// Command looks up a command definition.
func (r *Registry) Command(id string) (*CommandDefinition, error) {
	def, ok := r.commands[id]
	if !ok {
		return nil, &CommandNotFoundError{ID: id}
	}
	return def, nil
}

// Agent looks up an agent definition.
func (r *Registry) Agent(id string) (*AgentDefinition, error) {
	def, ok := r.agents[id]
	if !ok {
		return nil, &AgentNotFoundError{ID: id}
	}
	return def, nil
}

// Skill looks up a skill definition.
func (r *Registry) Skill(id string) (*SkillDefinition, bool) {
	def, ok := r.skills[id]
	return def, ok
}

// Rule looks up a rule definition.
func (r *Registry) Rule(id string) (*RuleDefinition, bool) {
	def, ok := r.rules[id]
	return def, ok
}

// AgentsByTag returns identifiers of agents carrying the tag, sorted.
func (r *Registry) AgentsByTag(tag string) []string {
	return append([]string(nil), r.agentsByTag[tag]...)
}

// SkillsByTag returns identifiers of skills applicable under the tag, sorted.
func (r *Registry) SkillsByTag(tag string) []string {
	return append([]string(nil), r.skillsByTag[tag]...)
}

// RulesByTag returns identifiers of scoped rules matching the tag, sorted.
// Always-on rules are not tag-indexed; use AlwaysOnRules.
func (r *Registry) RulesByTag(tag string) []string {
	return append([]string(nil), r.rulesByTag[tag]...)
}

// AlwaysOnRules returns every always-on rule, ordered by identifier.
func (r *Registry) AlwaysOnRules() []*RuleDefinition {
	var out []*RuleDefinition
	for _, rule := range r.rules {
		if rule.AlwaysOn {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Commands returns all command definitions ordered by identifier.
func (r *Registry) Commands() []*CommandDefinition {
	out := make([]*CommandDefinition, 0, len(r.commands))
	for _, def := range r.commands {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Agents returns all agent definitions ordered by identifier.
func (r *Registry) Agents() []*AgentDefinition {
	out := make([]*AgentDefinition, 0, len(r.agents))
	for _, def := range r.agents {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Skills returns all skill definitions ordered by identifier.
func (r *Registry) Skills() []*SkillDefinition {
	out := make([]*SkillDefinition, 0, len(r.skills))
	for _, def := range r.skills {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rules returns all rule definitions ordered by identifier.
func (r *Registry) Rules() []*RuleDefinition {
	out := make([]*RuleDefinition, 0, len(r.rules))
	for _, def := range r.rules {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// buildTagIndexes populates the tag -> ids maps. Called once by Load.
func (r *Registry) buildTagIndexes() {
	for id, agent := range r.agents {
		for _, tag := range agent.Tags {
			r.agentsByTag[tag] = append(r.agentsByTag[tag], id)
		}
	}
	for id, skill := range r.skills {
		for _, tag := range skill.Tags {
			r.skillsByTag[tag] = append(r.skillsByTag[tag], id)
		}
	}
	for id, rule := range r.rules {
		if rule.AlwaysOn {
			continue
		}
		for _, tag := range rule.ScopeTags {
			r.rulesByTag[tag] = append(r.rulesByTag[tag], id)
		}
	}

	for _, index := range []map[string][]string{r.agentsByTag, r.skillsByTag, r.rulesByTag} {
		for tag := range index {
			sort.Strings(index[tag])
		}
	}
}

// Validate reports dangling agent references in commands. Load tolerates
// them so `validate` can show all problems at once; the resolver rejects
// them per invocation.
func (r *Registry) Validate() []error {
	var errs []error
	for _, cmd := range r.Commands() {
		if _, ok := r.agents[cmd.Agent]; !ok {
			errs = append(errs, &AgentNotFoundError{ID: cmd.Agent})
		}
		for _, id := range cmd.FanOut {
			if _, ok := r.agents[id]; !ok {
				errs = append(errs, &AgentNotFoundError{ID: id})
			}
		}
	}
	return errs
}
