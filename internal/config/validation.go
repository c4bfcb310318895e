package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/lookupbench/internal/sqlutil"
)

// MaxChunkSize is the PostgreSQL limit on bind parameters per statement.
const MaxChunkSize = 65535

// MinCopyBufferSize is one encoded single-bigint COPY tuple.
const MinCopyBufferSize = 14

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateBenchmark()...)
	errors = append(errors, c.validateOutput()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateLock()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors
	db := &c.Database

	if db.URL == "" {
		if db.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "database.host",
				Message: "host is required",
			})
		}

		if db.Port <= 0 || db.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   "database.port",
				Message: "port must be between 1 and 65535",
			})
		}

		if db.User == "" {
			errors = append(errors, ValidationError{
				Field:   "database.user",
				Message: "user is required",
			})
		}

		if db.Database == "" {
			errors = append(errors, ValidationError{
				Field:   "database.database",
				Message: "database name is required",
			})
		}
	}

	validModes := map[string]bool{"disable": true, "prefer": true, "require": true, "verify-full": true, "": true}
	if !validModes[db.SSLMode] {
		errors = append(errors, ValidationError{
			Field:   "database.sslmode",
			Message: "sslmode must be 'disable', 'prefer', 'require', or 'verify-full'",
		})
	}

	if db.MaxConnections < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.max_connections",
			Message: "max_connections must be positive",
		})
	}

	if db.ConnectTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "database.connect_timeout",
			Message: "connect_timeout cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateBenchmark() ValidationErrors {
	var errors ValidationErrors
	b := &c.Benchmark

	if b.Iterations < 1 {
		errors = append(errors, ValidationError{
			Field:   "benchmark.iterations",
			Message: "iterations must be positive",
		})
	}

	if b.IdentifierCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "benchmark.identifier_count",
			Message: "identifier_count must be positive",
		})
	}

	if b.IdentifierRange < 1 {
		errors = append(errors, ValidationError{
			Field:   "benchmark.identifier_range",
			Message: "identifier_range must be positive",
		})
	} else if b.IdentifierRange < int64(b.IdentifierCount) {
		errors = append(errors, ValidationError{
			Field:   "benchmark.identifier_range",
			Message: fmt.Sprintf("identifier_range must be at least identifier_count (%d)", b.IdentifierCount),
		})
	}

	// Temp-table strategies load ids under a primary key and chunked lookups
	// would return a duplicate once per chunk, so every strategy needs unique ids.
	if !b.UniqueIdentifiers {
		errors = append(errors, ValidationError{
			Field:   "benchmark.unique_identifiers",
			Message: "unique_identifiers must be true: duplicate ids violate the temp table primary key",
		})
	}

	if b.WarmupRuns < 0 {
		errors = append(errors, ValidationError{
			Field:   "benchmark.warmup_runs",
			Message: "warmup_runs cannot be negative",
		})
	}

	if b.TrialTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "benchmark.trial_timeout",
			Message: "trial_timeout cannot be negative",
		})
	}

	if b.ChunkSize < 1 || b.ChunkSize > MaxChunkSize {
		errors = append(errors, ValidationError{
			Field:   "benchmark.chunk_size",
			Message: fmt.Sprintf("chunk_size must be between 1 and %d", MaxChunkSize),
		})
	}

	if b.CopyBufferSize < MinCopyBufferSize {
		errors = append(errors, ValidationError{
			Field:   "benchmark.copy_buffer_size",
			Message: fmt.Sprintf("copy_buffer_size must be at least %d bytes", MinCopyBufferSize),
		})
	}

	if !sqlutil.IsValidQualified(b.Table) {
		errors = append(errors, ValidationError{
			Field:   "benchmark.table",
			Message: fmt.Sprintf("invalid table name %q", b.Table),
		})
	}

	for field, col := range map[string]string{"benchmark.id_column": b.IDColumn, "benchmark.payload_column": b.PayloadColumn} {
		if !sqlutil.IsValidIdentifier(col) {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid column name %q", col),
			})
		}
	}

	seen := make(map[string]bool, len(b.Strategies))
	for i, name := range b.Strategies {
		if seen[name] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("benchmark.strategies[%d]", i),
				Message: fmt.Sprintf("strategy %q listed twice", name),
			})
		}
		seen[name] = true
	}

	return errors
}

func (c *Config) validateOutput() ValidationErrors {
	var errors ValidationErrors

	writesFiles := c.Output.CSV || c.Output.JSON || c.Output.LogFile != ""
	if writesFiles && c.Output.Directory == "" {
		errors = append(errors, ValidationError{
			Field:   "output.directory",
			Message: "directory is required when file output is enabled",
		})
	}

	if c.Output.StoreResults && !sqlutil.IsValidQualified(c.Output.ResultsTable) {
		errors = append(errors, ValidationError{
			Field:   "output.results_table",
			Message: fmt.Sprintf("invalid table name %q", c.Output.ResultsTable),
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

// MinLockedConnections is the pool size needed while the run lock pins one
// connection for the whole run.
const MinLockedConnections = 2

func (c *Config) validateLock() ValidationErrors {
	if !c.Lock.Enabled {
		return nil
	}

	var errors ValidationErrors
	if c.Lock.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "lock.name",
			Message: "name is required when lock is enabled",
		})
	}
	if c.Database.MaxConnections > 0 && c.Database.MaxConnections < MinLockedConnections {
		errors = append(errors, ValidationError{
			Field:   "database.max_connections",
			Message: fmt.Sprintf("max_connections must be at least %d when lock is enabled (the lock holds one connection)", MinLockedConnections),
		})
	}
	return errors
}
