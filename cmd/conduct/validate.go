package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load every definition and report problems",
	Long: `Loads the full definitions tree and reports parse failures, duplicate
identifiers, and commands whose target or fan-out agents do not exist.
Exits non-zero if any problem is found.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, reg, err := setup()
	if err != nil {
		return err
	}

	if errs := reg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Println("problem:", e)
		}
		return fmt.Errorf("%d problem(s) found", len(errs))
	}

	fmt.Printf("ok: %d commands, %d agents, %d skills, %d rules\n",
		len(reg.Commands()), len(reg.Agents()), len(reg.Skills()), len(reg.Rules()))
	return nil
}
