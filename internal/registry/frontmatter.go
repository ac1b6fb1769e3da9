package registry

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// frontMatter is the union of metadata fields across all definition kinds.
// Each kind reads the fields it cares about; unknown fields are ignored.
type frontMatter struct {
	ID          string `yaml:"id" toml:"id"`
	Description string `yaml:"description" toml:"description"`

	// Command fields
	Agent   string   `yaml:"agent" toml:"agent"`
	FanOut  []string `yaml:"fan_out" toml:"fan_out"`
	Args    string   `yaml:"args" toml:"args"`
	Timeout string   `yaml:"timeout" toml:"timeout"`

	// Agent fields
	Tags         []string `yaml:"tags" toml:"tags"`
	OutputSchema string   `yaml:"output_schema" toml:"output_schema"`

	// Skill fields
	Summary string `yaml:"summary" toml:"summary"`

	// Rule fields
	AlwaysOn  bool     `yaml:"always_on" toml:"always_on"`
	ScopeTags []string `yaml:"scope_tags" toml:"scope_tags"`
}

const (
	yamlFence = "---"
	tomlFence = "+++"
)

// splitFrontMatter separates a definition document into parsed front matter
// and the opaque body. YAML front matter uses "---" fences, TOML uses "+++"
// (the Hugo convention). The body is returned with surrounding whitespace
// trimmed.
func splitFrontMatter(data []byte) (frontMatter, string, error) {
	var meta frontMatter

	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var fence string
	switch {
	case strings.HasPrefix(text, yamlFence+"\n"):
		fence = yamlFence
	case strings.HasPrefix(text, tomlFence+"\n"):
		fence = tomlFence
	default:
		return meta, "", fmt.Errorf("missing front matter fence (%q or %q)", yamlFence, tomlFence)
	}

	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return meta, "", fmt.Errorf("unterminated %q front matter", fence)
	}

	block := rest[:end]
	body := rest[end+len(fence)+1:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}

	switch fence {
	case yamlFence:
		if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
			return meta, "", fmt.Errorf("parse yaml front matter: %w", err)
		}
	case tomlFence:
		if err := toml.Unmarshal([]byte(block), &meta); err != nil {
			return meta, "", fmt.Errorf("parse toml front matter: %w", err)
		}
	}

	if meta.ID == "" {
		return meta, "", fmt.Errorf("front matter missing required id field")
	}

	return meta, strings.TrimSpace(body), nil
}

// splitSections breaks a skill body into its preamble and "## " sections.
// The preamble is the text before the first section heading.
func splitSections(body string) (string, []SkillSection) {
	lines := strings.Split(body, "\n")

	var preamble []string
	var sections []SkillSection
	var current *SkillSection

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(current.Body)
			sections = append(sections, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = &SkillSection{Title: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		if current != nil {
			current.Body += line + "\n"
		} else {
			preamble = append(preamble, line)
		}
	}
	flush()

	return strings.TrimSpace(strings.Join(preamble, "\n")), sections
}
