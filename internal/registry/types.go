// Package registry loads and indexes the four definition kinds the engine
// dispatches over: commands, agents, skills, and rules. Definitions are
// markdown documents with structured front matter; bodies are opaque to the
// engine. The registry is immutable after Load and safe for concurrent reads.
package registry

// Kind names a definition kind.
type Kind string

const (
	KindCommand Kind = "command"
	KindAgent   Kind = "agent"
	KindSkill   Kind = "skill"
	KindRule    Kind = "rule"
)

// CommandDefinition maps a user-invocable command to its target agent.
type CommandDefinition struct {
	ID          string
	Description string
	// ArgSchema describes the expected arguments. Opaque to the engine.
	ArgSchema string
	// Agent is the primary target agent identifier.
	Agent string
	// FanOut lists additional agents the command delegates to concurrently.
	FanOut []string
	// Instructions is the optional inline body included in every bundle
	// composed for this command.
	Instructions string
	// Timeout overrides the configured per-run deadline. Duration string.
	Timeout string
}

// AgentDefinition is a persona with capability tags.
type AgentDefinition struct {
	ID          string
	Description string
	// Persona is the opaque instruction body.
	Persona string
	// Tags declare the agent's capabilities, used for skill and rule matching.
	Tags []string
	// OutputSchema describes the expected output. Opaque to the engine.
	OutputSchema string
}

// SkillSection is one independently sized detail section of a skill.
type SkillSection struct {
	Title string
	Body  string
}

// SkillDefinition is reusable reference material with progressive disclosure:
// the summary may be included without any section, but a section is never
// included without the summary.
type SkillDefinition struct {
	ID      string
	Summary string
	// Sections are the detail sections in document order.
	Sections []SkillSection
	// Tags declare where the skill applies.
	Tags []string
}

// RuleDefinition is a mandatory constraint. AlwaysOn rules appear in every
// bundle; scoped rules apply only to agents whose tags intersect ScopeTags.
type RuleDefinition struct {
	ID       string
	Text     string
	AlwaysOn bool
	// ScopeTags restrict which agents the rule applies to. Ignored when
	// AlwaysOn is set.
	ScopeTags []string
}
