package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/lookupbench/internal/database"
	"github.com/dbsmedya/lookupbench/internal/runner"
	"github.com/dbsmedya/lookupbench/internal/strategy"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and runs preflight checks
against the database to ensure the benchmark can run.

Checks performed:
  - Configuration syntax and required fields
  - Strategy names
  - Database connectivity
  - Table existence
  - Id and payload column types
  - Id column index (warning only)
  - Approximate row count

Example:
  lookupbench validate --config lookupbench.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(GetCLIOverrides())
	if err != nil {
		return err
	}

	if _, err := strategy.NewRegistry(strategyOptions(&cfg.Benchmark)).Select(cfg.Benchmark.Strategies); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting validation checks...")

	ctx := context.Background()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	checker, err := runner.NewPreflightChecker(dbManager.DB, &cfg.Benchmark, log)
	if err != nil {
		return fmt.Errorf("failed to create preflight checker: %w", err)
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config: %s\n", describeConfig())
	cmd.Printf("Table: %s\n\n", cfg.Benchmark.Table)

	rep, err := checker.RunAllChecks(ctx)
	if err != nil {
		cmd.Printf("❌ Preflight checks failed: %v\n", err)
		return fmt.Errorf("validation failed")
	}

	printPreflight(cmd, rep)

	cmd.Println("=== Validation Complete ===")
	cmd.Println("✅ All checks passed")
	return nil
}

func printPreflight(cmd *cobra.Command, rep *runner.PreflightReport) {
	columns := make([]string, 0, len(rep.Columns))
	for name := range rep.Columns {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	for _, name := range columns {
		cmd.Printf("Column %s: %s\n", name, rep.Columns[name])
	}
	cmd.Printf("Id indexed: %v\n", rep.IDIndexed)
	cmd.Printf("Approximate rows: %s\n", humanize.Comma(rep.ApproxRows))

	for _, w := range rep.Warnings {
		cmd.Printf("⚠️  %s\n", w)
	}
	cmd.Println()
}
