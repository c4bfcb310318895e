package cmd

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/lookupbench/internal/strategy"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available lookup strategies",
	Long: `List displays every registered strategy in run order with its
description. Names are the values accepted by run --strategy.
No database connection is needed.

Example:
  lookupbench list`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	// No database is involved, so the connection settings are not validated
	cfg, err := readConfig(GetCLIOverrides())
	if err != nil {
		return err
	}

	registry := strategy.NewRegistry(strategyOptions(&cfg.Benchmark))
	names := registry.Names()

	width := 0
	for _, name := range names {
		if w := runewidth.StringWidth(name); w > width {
			width = w
		}
	}

	selected := make(map[string]bool, len(cfg.Benchmark.Strategies))
	for _, name := range cfg.Benchmark.Strategies {
		selected[name] = true
	}

	cmd.Printf("Strategies (run order):\n\n")
	for i, name := range names {
		st, _ := registry.Get(name)
		marker := " "
		if selected[name] {
			marker = "*"
		}
		cmd.Printf("%2d.%s %s  %s\n", i+1, marker, runewidth.FillRight(name, width), st.Description())
	}

	if len(selected) > 0 {
		cmd.Printf("\n* selected in %s\n", describeConfig())
	}
	cmd.Printf("\nTotal: %d strategies\n", len(names))
	return nil
}

func describeConfig() string {
	if GetConfigFile() == "" {
		return "built-in defaults"
	}
	return fmt.Sprintf("%q", GetConfigFile())
}
