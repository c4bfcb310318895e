package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/database"
	"github.com/dbsmedya/lookupbench/internal/lock"
	"github.com/dbsmedya/lookupbench/internal/seed"
)

var (
	seedRows      int64
	seedBatchSize int64
	seedDrop      bool
	seedNoLock    bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create and populate the lookup table",
	Long: `Seed creates the lookup table if it does not exist, empties it and loads
ids 1..N with the payload "response-<id>" using COPY.

The table layout comes from the benchmark section (table, id_column,
payload_column). Rows default to benchmark.identifier_range so every
generated identifier has a match.

Example:
  lookupbench seed --rows 20000000
  lookupbench seed --rows 100000 --drop`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().Int64Var(&seedRows, "rows", 0,
		"Number of rows to load (default: benchmark.identifier_range)")
	seedCmd.Flags().Int64Var(&seedBatchSize, "batch-size", seed.DefaultBatchSize,
		"Rows per COPY")
	seedCmd.Flags().BoolVar(&seedDrop, "drop", false,
		"Drop and recreate the table instead of truncating it")
	seedCmd.Flags().BoolVar(&seedNoLock, "no-lock", false,
		"Skip the advisory lock")

	rootCmd.AddCommand(seedCmd)
}

func seedOptions(cfg *config.BenchmarkConfig) seed.Options {
	rows := seedRows
	if rows == 0 {
		rows = cfg.IdentifierRange
	}
	return seed.Options{
		Table:         cfg.Table,
		IDColumn:      cfg.IDColumn,
		PayloadColumn: cfg.PayloadColumn,
		Rows:          rows,
		BatchSize:     seedBatchSize,
		Drop:          seedDrop,
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	overrides := GetCLIOverrides()
	overrides.NoLock = seedNoLock
	cfg, err := loadConfig(overrides)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := database.SetupSignalHandler(nil)
	defer cancel()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	seeder, err := seed.New(dbManager.Pool, seedOptions(&cfg.Benchmark), log)
	if err != nil {
		return err
	}

	load := func(ctx context.Context) error {
		n, err := seeder.Run(ctx)
		if err != nil {
			return fmt.Errorf("seeding failed after %s rows: %w", humanize.Comma(n), err)
		}
		cmd.Printf("Loaded %s rows into %s\n", humanize.Comma(n), cfg.Benchmark.Table)
		return nil
	}

	if !cfg.Lock.Enabled {
		return load(ctx)
	}
	runLock := lock.NewRunLock(dbManager.DB, cfg.Lock.Name)
	return lockError(runLock.WithLock(ctx, lock.TimeoutShort, func() error {
		return load(ctx)
	}))
}
