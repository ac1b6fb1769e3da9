package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"conduct/internal/logging"
)

// Subdirectory per definition kind under the definitions root.
var kindDirs = map[Kind]string{
	KindCommand: "commands",
	KindAgent:   "agents",
	KindSkill:   "skills",
	KindRule:    "rules",
}

// Load reads every definition under root and builds the indexed registry.
// A missing kind directory is allowed (an engine with no rules is legal);
// a duplicate identifier within a kind is not.
func Load(root string) (*Registry, error) {
	log := logging.Get(logging.CategoryRegistry)

	reg := &Registry{
		commands:    make(map[string]*CommandDefinition),
		agents:      make(map[string]*AgentDefinition),
		skills:      make(map[string]*SkillDefinition),
		rules:       make(map[string]*RuleDefinition),
		agentsByTag: make(map[string][]string),
		skillsByTag: make(map[string][]string),
		rulesByTag:  make(map[string][]string),
	}

	for _, kind := range []Kind{KindCommand, KindAgent, KindSkill, KindRule} {
		dir := filepath.Join(root, kindDirs[kind])
		paths, err := definitionFiles(dir)
		if err != nil {
			return nil, err
		}

		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			meta, body, err := splitFrontMatter(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if err := reg.add(kind, meta, body, path); err != nil {
				return nil, err
			}
		}

		log.Debug("loaded definitions",
			zap.String("kind", string(kind)),
			zap.Int("count", len(paths)))
	}

	reg.buildTagIndexes()

	log.Info("registry ready",
		zap.Int("commands", len(reg.commands)),
		zap.Int("agents", len(reg.agents)),
		zap.Int("skills", len(reg.skills)),
		zap.Int("rules", len(reg.rules)))

	return reg, nil
}

// definitionFiles lists markdown files in dir, sorted for deterministic load
// order. A missing directory yields no files.
func definitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".md" && ext != ".markdown" {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// add materializes one parsed document into its definition kind.
func (r *Registry) add(kind Kind, meta frontMatter, body, path string) error {
	switch kind {
	case KindCommand:
		if _, dup := r.commands[meta.ID]; dup {
			return &DuplicateIDError{Kind: kind, ID: meta.ID, Path: path}
		}
		if meta.Agent == "" {
			return fmt.Errorf("%s: command %q has no target agent", path, meta.ID)
		}
		r.commands[meta.ID] = &CommandDefinition{
			ID:           meta.ID,
			Description:  meta.Description,
			ArgSchema:    meta.Args,
			Agent:        meta.Agent,
			FanOut:       meta.FanOut,
			Instructions: body,
			Timeout:      meta.Timeout,
		}

	case KindAgent:
		if _, dup := r.agents[meta.ID]; dup {
			return &DuplicateIDError{Kind: kind, ID: meta.ID, Path: path}
		}
		r.agents[meta.ID] = &AgentDefinition{
			ID:           meta.ID,
			Description:  meta.Description,
			Persona:      body,
			Tags:         NormalizeTags(meta.Tags),
			OutputSchema: meta.OutputSchema,
		}

	case KindSkill:
		if _, dup := r.skills[meta.ID]; dup {
			return &DuplicateIDError{Kind: kind, ID: meta.ID, Path: path}
		}
		preamble, sections := splitSections(body)
		summary := meta.Summary
		if summary == "" {
			summary = preamble
		}
		if summary == "" {
			return fmt.Errorf("%s: skill %q has neither summary field nor preamble", path, meta.ID)
		}
		r.skills[meta.ID] = &SkillDefinition{
			ID:       meta.ID,
			Summary:  summary,
			Sections: sections,
			Tags:     NormalizeTags(meta.Tags),
		}

	case KindRule:
		if _, dup := r.rules[meta.ID]; dup {
			return &DuplicateIDError{Kind: kind, ID: meta.ID, Path: path}
		}
		if body == "" {
			return fmt.Errorf("%s: rule %q has an empty body", path, meta.ID)
		}
		r.rules[meta.ID] = &RuleDefinition{
			ID:        meta.ID,
			Text:      body,
			AlwaysOn:  meta.AlwaysOn,
			ScopeTags: NormalizeTags(meta.ScopeTags),
		}
	}
	return nil
}

// NormalizeTags lowercases, trims, and deduplicates tags, preserving order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
