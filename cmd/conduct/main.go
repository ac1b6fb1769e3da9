// conduct is a command dispatch and context composition engine: it turns an
// invoked command into budgeted instruction bundles, fans them out to
// isolated runner processes, and merges the results into one report.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conduct/internal/config"
	"conduct/internal/logging"
	"conduct/internal/registry"
)

// Exit codes for the invocation surface.
const (
	exitOK = 0
	// exitRunsFailed: every run failed, timed out, or was cancelled.
	exitRunsFailed = 1
	// exitSetup: load, resolution, composition, or configuration error.
	exitSetup = 2
)

var (
	cfgPath   string
	workspace string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "conduct",
	Short: "Command dispatch and context composition engine",
	Long: `conduct resolves an invoked command to one or more agents, assembles a
budget-constrained context bundle per agent (mandatory rules first, persona
second, tag-matched skill material last), executes the runs concurrently in
isolation, and merges the results into a single report.

Definitions live as markdown documents with front matter under the
definitions directory: commands/, agents/, skills/, rules/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errRunsFailed marks a completed invocation in which no run succeeded.
var errRunsFailed = errors.New("all runs failed")

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "conduct.yaml", "Path to the engine config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace root for relative paths")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads config, installs logging, and loads the registry.
func setup() (*config.Config, *registry.Registry, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	cats := make(map[logging.Category]bool)
	for name := range cfg.LogCategories() {
		cats[logging.Category(name)] = true
	}
	if err := logging.Initialize(verbose || cfg.Logging.Verbose, cats); err != nil {
		return nil, nil, fmt.Errorf("initialize logging: %w", err)
	}

	reg, err := registry.Load(cfg.ResolveDefinitionsDir(workspace))
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errRunsFailed) {
		return exitRunsFailed
	}
	// Everything else is a setup-stage failure: load, resolution,
	// composition, or configuration.
	return exitSetup
}

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}
