// Package config holds engine configuration loaded from a YAML file with
// environment variable overrides. Paths are resolved relative to the
// workspace so a checked-in conduct.yaml works from any directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	// DefinitionsDir is the root containing commands/, agents/, skills/, rules/.
	DefinitionsDir string `yaml:"definitions_dir"`

	Budget   BudgetConfig   `yaml:"budget"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Runner   RunnerConfig   `yaml:"runner"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BudgetConfig configures bundle composition.
type BudgetConfig struct {
	// CeilingTokens is the size ceiling for every composed bundle.
	CeilingTokens int `yaml:"ceiling_tokens"`
}

// DispatchConfig configures run scheduling.
type DispatchConfig struct {
	// MaxConcurrent bounds the number of runs executing at once.
	MaxConcurrent int `yaml:"max_concurrent"`
	// RunTimeout is the per-run deadline. Duration string, e.g. "2m".
	RunTimeout string `yaml:"run_timeout"`
}

// RunnerConfig configures the subprocess that executes composed bundles.
type RunnerConfig struct {
	// Command is the runner binary. The bundle text arrives on stdin.
	Command string `yaml:"command"`
	// Args are prepended to the invocation's own arguments.
	Args []string `yaml:"args"`
}

// LoggingConfig controls category-filtered logging.
type LoggingConfig struct {
	Verbose    bool     `yaml:"verbose"`
	Categories []string `yaml:"categories"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		DefinitionsDir: ".conduct",
		Budget: BudgetConfig{
			CeilingTokens: 24000,
		},
		Dispatch: DispatchConfig{
			MaxConcurrent: 4,
			RunTimeout:    "2m",
		},
	}
}

// Load reads config from path, falling back to defaults when the file does
// not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets CONDUCT_* variables win over file values.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CONDUCT_DEFINITIONS_DIR"); dir != "" {
		c.DefinitionsDir = dir
	}
	if ceiling := os.Getenv("CONDUCT_BUDGET_CEILING"); ceiling != "" {
		if n, err := strconv.Atoi(ceiling); err == nil && n > 0 {
			c.Budget.CeilingTokens = n
		}
	}
	if limit := os.Getenv("CONDUCT_MAX_CONCURRENT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			c.Dispatch.MaxConcurrent = n
		}
	}
	if timeout := os.Getenv("CONDUCT_RUN_TIMEOUT"); timeout != "" {
		c.Dispatch.RunTimeout = timeout
	}
	if cmd := os.Getenv("CONDUCT_RUNNER"); cmd != "" {
		c.Runner.Command = cmd
		c.Runner.Args = nil
	}
}

// Validate rejects configs the engine cannot run with.
func (c *Config) Validate() error {
	if c.Budget.CeilingTokens <= 0 {
		return fmt.Errorf("budget.ceiling_tokens must be positive, got %d", c.Budget.CeilingTokens)
	}
	if c.Dispatch.MaxConcurrent <= 0 {
		return fmt.Errorf("dispatch.max_concurrent must be positive, got %d", c.Dispatch.MaxConcurrent)
	}
	if _, err := c.RunTimeout(); err != nil {
		return err
	}
	return nil
}

// RunTimeout parses the per-run deadline.
func (c *Config) RunTimeout() (time.Duration, error) {
	if c.Dispatch.RunTimeout == "" {
		return 2 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.Dispatch.RunTimeout)
	if err != nil {
		return 0, fmt.Errorf("dispatch.run_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("dispatch.run_timeout must be positive, got %s", d)
	}
	return d, nil
}

// ResolveDefinitionsDir returns the definitions root as an absolute path
// anchored at the workspace.
func (c *Config) ResolveDefinitionsDir(workspace string) string {
	if filepath.IsAbs(c.DefinitionsDir) {
		return c.DefinitionsDir
	}
	return filepath.Join(workspace, c.DefinitionsDir)
}

// LogCategories converts the configured category names into a filter set.
func (c *Config) LogCategories() map[string]bool {
	if len(c.Logging.Categories) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Logging.Categories))
	for _, name := range c.Logging.Categories {
		set[name] = true
	}
	return set
}
