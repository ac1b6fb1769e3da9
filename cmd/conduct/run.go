package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"conduct/internal/aggregate"
	"conduct/internal/dispatch"
	"conduct/internal/engine"
)

var (
	runAgentOverride string
	runTags          []string
	runJSON          bool
	runTimeout       time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Invoke a command and print the aggregated report",
	Long: `Resolves the command to its target agent (plus any fan-out agents),
composes one context bundle per agent under the configured token ceiling,
executes the runs concurrently, and prints the merged report.

Exit code is 0 on success or partial success, 1 when every run failed,
and 2 on resolution, composition, load, or configuration errors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInvocation,
}

func init() {
	runCmd.Flags().StringVar(&runAgentOverride, "agent", "", "Override the command's target agent")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Extra context tags for skill and rule matching (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-run timeout for this invocation, overriding config and command declarations")
}

func runInvocation(cmd *cobra.Command, args []string) error {
	cfg, reg, err := setup()
	if err != nil {
		return err
	}

	timeout, err := cfg.RunTimeout()
	if err != nil {
		return err
	}
	runner, err := dispatch.NewExecRunner(cfg.Runner.Command, cfg.Runner.Args)
	if err != nil {
		return err
	}

	eng := engine.New(reg, engine.Options{
		CeilingTokens:   cfg.Budget.CeilingTokens,
		MaxConcurrent:   cfg.Dispatch.MaxConcurrent,
		DefaultTimeout:  timeout,
		TimeoutOverride: runTimeout,
		Runner:          runner,
	})

	report, err := eng.Invoke(cmd.Context(), engine.Invocation{
		Command:       args[0],
		Args:          strings.Join(args[1:], " "),
		ExtraTags:     runTags,
		OverrideAgent: runAgentOverride,
	})
	if err != nil {
		return err
	}

	if err := printReport(report); err != nil {
		return err
	}
	if report.Status == aggregate.StatusFailed {
		return errRunsFailed
	}
	return nil
}

func printReport(report *aggregate.Report) error {
	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("invocation %s: %s (%s in %s)\n",
		report.InvocationID, report.Command, report.Status, report.Elapsed.Round(time.Millisecond))

	for _, res := range report.Results {
		fmt.Printf("\n[%s] %s (%s)\n", res.State, res.AgentID, res.Elapsed.Round(time.Millisecond))
		if res.Output != "" {
			fmt.Println(strings.TrimRight(res.Output, "\n"))
		}
		if res.Error != "" {
			fmt.Println("  error:", res.Error)
		}
	}

	for _, trim := range report.TrimLogs {
		fmt.Printf("\ntrimmed for %s:\n", trim.AgentID)
		for _, entry := range trim.Entries {
			fmt.Printf("  - %s %s: %s\n", entry.Kind, entry.SourceID, entry.Reason)
		}
	}
	return nil
}
