package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/database"
	"github.com/dbsmedya/lookupbench/internal/idset"
	"github.com/dbsmedya/lookupbench/internal/lock"
	"github.com/dbsmedya/lookupbench/internal/logger"
	"github.com/dbsmedya/lookupbench/internal/report"
	"github.com/dbsmedya/lookupbench/internal/runner"
	"github.com/dbsmedya/lookupbench/internal/strategy"
	"github.com/dbsmedya/lookupbench/internal/types"
)

var (
	runStrategies []string
	runOutputDir  string
	runNoLock     bool
	runNoColor    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Benchmark the lookup strategies",
	Long: `Run times every selected strategy against the same identifier set.

The run proceeds in these steps:
  1. Take the advisory lock so no other benchmark shares the database
  2. Preflight the lookup table (existence, columns, index, size)
  3. Generate the identifier set (the seed is logged for reproduction)
  4. Warm up, then time each strategy trial by trial, one strategy at a time
  5. Cross-check row counts and row digests between strategies
  6. Write the CSV, log file, console, JSON and database reports

Ctrl-C stops after the current trial; results gathered so far are still reported.

Example:
  lookupbench run --config lookupbench.yaml
  lookupbench run -i 10 -t 1000 --strategy any_array --strategy temp_table_binary_copy`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runStrategies, "strategy", "s", nil,
		"Strategy to run, repeatable and ordered (default: all, see 'lookupbench list')")
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "",
		"Override the report output directory")
	runCmd.Flags().BoolVar(&runNoLock, "no-lock", false,
		"Skip the advisory lock (use with caution: concurrent runs skew each other)")
	runCmd.Flags().BoolVar(&runNoColor, "no-color", false,
		"Disable colored console output")

	rootCmd.AddCommand(runCmd)
}

// runOverrides adds the run-only flags to the persistent overrides.
func runOverrides() config.Overrides {
	o := GetCLIOverrides()
	o.Strategies = runStrategies
	o.OutputDir = runOutputDir
	o.NoLock = runNoLock
	return o
}

func strategyOptions(cfg *config.BenchmarkConfig) strategy.Options {
	return strategy.Options{
		Table:          cfg.Table,
		IDColumn:       cfg.IDColumn,
		PayloadColumn:  cfg.PayloadColumn,
		ChunkSize:      cfg.ChunkSize,
		CopyBufferSize: cfg.CopyBufferSize,
	}
}

func identifierConfig(cfg *config.BenchmarkConfig) idset.Config {
	return idset.Config{
		Count:  cfg.IdentifierCount,
		Range:  cfg.IdentifierRange,
		Unique: cfg.UniqueIdentifiers,
		Seed:   cfg.Seed,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runOverrides())
	if err != nil {
		return err
	}

	// Resolve strategies before touching the database so a typo fails fast
	strategies, err := strategy.NewRegistry(strategyOptions(&cfg.Benchmark)).Select(cfg.Benchmark.Strategies)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Infow("Starting benchmark",
		"config", describeConfig(),
		"strategies", len(strategies),
		"iterations", cfg.Benchmark.Iterations,
		"identifiers", cfg.Benchmark.IdentifierCount,
	)

	ctx, cancel := database.SetupSignalHandler(func(sig os.Signal) {
		log.Warnw("Received shutdown signal - finishing current trial...", "signal", sig.String())
	})
	defer cancel()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	if !cfg.Lock.Enabled {
		log.Warn("Skipping advisory lock acquisition (lock disabled)")
		return benchmark(ctx, cmd, cfg, dbManager, strategies, log)
	}

	runLock := lock.NewRunLock(dbManager.DB, cfg.Lock.Name)
	err = runLock.WithLock(ctx, lock.TimeoutShort, func() error {
		log.Infow("Acquired advisory lock", "lock", runLock.LockName())
		return benchmark(ctx, cmd, cfg, dbManager, strategies, log)
	})
	return lockError(err)
}

// benchmark runs the preflight, the strategies and the reports while the
// lock, if any, is held.
func benchmark(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dbManager *database.Manager, strategies []types.Strategy, log *logger.Logger) error {
	checker, err := runner.NewPreflightChecker(dbManager.DB, &cfg.Benchmark, log)
	if err != nil {
		return fmt.Errorf("failed to create preflight checker: %w", err)
	}
	if _, err := checker.RunAllChecks(ctx); err != nil {
		return fmt.Errorf("preflight checks failed: %w", err)
	}

	ids, seed, err := idset.Generate(identifierConfig(&cfg.Benchmark))
	if err != nil {
		return fmt.Errorf("failed to generate identifiers: %w", err)
	}
	log.Infow("Generated identifier set", "count", ids.Len(), "seed", seed)

	sinks, err := report.Build(ctx, &cfg.Output, dbManager.DB, cmd.OutOrStdout(), !runNoColor)
	if err != nil {
		return fmt.Errorf("failed to open reports: %w", err)
	}

	r, err := runner.New(dbManager, strategies, sinks, runner.OptionsFromConfig(&cfg.Benchmark), log)
	if err != nil {
		_ = sinks.Close()
		return fmt.Errorf("failed to create runner: %w", err)
	}

	result, runErr := r.Run(ctx, ids)

	var errs *multierror.Error
	if err := sinks.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to write reports: %w", err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		errs = multierror.Append(errs, fmt.Errorf("benchmark failed: %w", runErr))
	}
	if result != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warnw("Benchmark cancelled by user", "completed_strategies", len(result.Summaries))
		}
		for _, e := range result.Errors {
			errs = multierror.Append(errs, e)
		}
		if failed := result.Failed(); len(failed) > 0 {
			errs = multierror.Append(errs, fmt.Errorf("%d of %d strategies did not complete", len(failed), len(result.Summaries)))
		}
		log.Infow("Benchmark finished", "run_id", result.RunID, "duration", result.Duration)
	}

	return errs.ErrorOrNil()
}
