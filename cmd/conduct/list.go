package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:       "list [commands|agents|skills|rules]",
	Short:     "List loaded definitions",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"commands", "agents", "skills", "rules"},
	RunE:      runList,
}

func runList(cmd *cobra.Command, args []string) error {
	_, reg, err := setup()
	if err != nil {
		return err
	}

	kind := ""
	if len(args) == 1 {
		kind = args[0]
	}

	if kind == "" || kind == "commands" {
		fmt.Println("commands:")
		for _, def := range reg.Commands() {
			targets := append([]string{def.Agent}, def.FanOut...)
			fmt.Printf("  %-24s -> %s", def.ID, strings.Join(targets, ", "))
			if def.Description != "" {
				fmt.Printf("  (%s)", def.Description)
			}
			fmt.Println()
		}
	}
	if kind == "" || kind == "agents" {
		fmt.Println("agents:")
		for _, def := range reg.Agents() {
			fmt.Printf("  %-24s tags=[%s]\n", def.ID, strings.Join(def.Tags, ", "))
		}
	}
	if kind == "" || kind == "skills" {
		fmt.Println("skills:")
		for _, def := range reg.Skills() {
			fmt.Printf("  %-24s tags=[%s] sections=%d\n",
				def.ID, strings.Join(def.Tags, ", "), len(def.Sections))
		}
	}
	if kind == "" || kind == "rules" {
		fmt.Println("rules:")
		for _, def := range reg.Rules() {
			scope := "always-on"
			if !def.AlwaysOn {
				scope = "scope=[" + strings.Join(def.ScopeTags, ", ") + "]"
			}
			fmt.Printf("  %-24s %s\n", def.ID, scope)
		}
	}
	return nil
}
