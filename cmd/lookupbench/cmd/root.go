package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/lock"
	"github.com/dbsmedya/lookupbench/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile     string
	logLevel    string
	logFormat   string
	iterations  int
	testIDs     int
	databaseURL string
)

var rootCmd = &cobra.Command{
	Use:   "lookupbench",
	Short: "PostgreSQL id-lookup strategy benchmark",
	Long: `A benchmark that compares strategies for fetching a large set of rows
by id from PostgreSQL, timing each one over many isolated trials.

Features:
  - Nine lookup strategies (prepared chunks, arrays, temp tables, COPY BINARY)
  - One retry per trial, partial results flagged explicitly
  - Mean, median, standard deviation and p50/p95/p99 per strategy
  - Row-count and content cross-check between strategies
  - CSV, log file, console, JSON and database reports`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to configuration file (built-in defaults when empty)")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Benchmark overrides
	rootCmd.PersistentFlags().IntVarP(&iterations, "iterations", "i", 0,
		"Override number of timed trials per strategy")
	rootCmd.PersistentFlags().IntVarP(&testIDs, "test-ids", "t", 0,
		"Override number of identifiers looked up per trial")
	rootCmd.PersistentFlags().StringVarP(&databaseURL, "database-url", "d", "",
		"PostgreSQL connection URL (overrides the database section and $DATABASE_URL)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the persistent flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		Iterations:  iterations,
		TestIDs:     testIDs,
		DatabaseURL: databaseURL,
	}
}

// readConfig reads the config file and applies overrides without validating.
func readConfig(overrides config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(overrides)
	return cfg, nil
}

// loadConfig is readConfig followed by validation.
func loadConfig(overrides config.Overrides) (*config.Config, error) {
	cfg, err := readConfig(overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// lockError turns a lost lock race into an actionable message.
func lockError(err error) error {
	if errors.Is(err, lock.ErrLockTimeout) {
		return fmt.Errorf("another lookupbench instance is using this database (use --no-lock to override): %w", err)
	}
	return err
}
