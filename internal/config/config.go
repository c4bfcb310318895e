// Package config provides configuration structures and loading for lookupbench.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Lock      LockConfig      `yaml:"lock" mapstructure:"lock"`
}

// DatabaseConfig represents a PostgreSQL connection configuration.
type DatabaseConfig struct {
	// URL, when set, is used verbatim and the discrete fields below are ignored.
	URL             string `yaml:"url" mapstructure:"url"`
	Host            string `yaml:"host" mapstructure:"host"`
	Port            int    `yaml:"port" mapstructure:"port"`
	User            string `yaml:"user" mapstructure:"user"`
	Password        string `yaml:"password" mapstructure:"password"`
	Database        string `yaml:"database" mapstructure:"database"`
	SSLMode         string `yaml:"sslmode" mapstructure:"sslmode"` // disable, prefer, require, verify-full
	MaxConnections  int    `yaml:"max_connections" mapstructure:"max_connections"`
	ConnectTimeout  int    `yaml:"connect_timeout" mapstructure:"connect_timeout"` // seconds
	ApplicationName string `yaml:"application_name" mapstructure:"application_name"`
}

// BenchmarkConfig controls what is measured and how often.
type BenchmarkConfig struct {
	Iterations        int           `yaml:"iterations" mapstructure:"iterations"`
	IdentifierCount   int           `yaml:"identifier_count" mapstructure:"identifier_count"`
	IdentifierRange   int64         `yaml:"identifier_range" mapstructure:"identifier_range"`
	UniqueIdentifiers bool          `yaml:"unique_identifiers" mapstructure:"unique_identifiers"`
	Seed              int64         `yaml:"seed" mapstructure:"seed"` // 0 = time based
	WarmupRuns        int           `yaml:"warmup_runs" mapstructure:"warmup_runs"`
	TrialTimeout      time.Duration `yaml:"trial_timeout" mapstructure:"trial_timeout"` // 0 = none
	ChunkSize         int           `yaml:"chunk_size" mapstructure:"chunk_size"`
	CopyBufferSize    int           `yaml:"copy_buffer_size" mapstructure:"copy_buffer_size"`
	ColdCache         bool          `yaml:"cold_cache" mapstructure:"cold_cache"`
	Table             string        `yaml:"table" mapstructure:"table"`
	IDColumn          string        `yaml:"id_column" mapstructure:"id_column"`
	PayloadColumn     string        `yaml:"payload_column" mapstructure:"payload_column"`
	// Strategies selects and orders the strategies to run; empty runs all.
	Strategies []string `yaml:"strategies" mapstructure:"strategies"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Directory    string `yaml:"directory" mapstructure:"directory"`
	CSV          bool   `yaml:"csv" mapstructure:"csv"`
	LogFile      string `yaml:"log_file" mapstructure:"log_file"` // empty disables
	JSON         bool   `yaml:"json" mapstructure:"json"`
	Console      bool   `yaml:"console" mapstructure:"console"`
	StoreResults bool   `yaml:"store_results" mapstructure:"store_results"`
	ResultsTable string `yaml:"results_table" mapstructure:"results_table"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// LockConfig controls the advisory lock that serializes runs against one database.
type LockConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Name    string `yaml:"name" mapstructure:"name"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  10,
			ConnectTimeout:  10,
			ApplicationName: "lookupbench",
		},
		Benchmark: BenchmarkConfig{
			Iterations:        100,
			IdentifierCount:   60000,
			IdentifierRange:   20_000_000,
			UniqueIdentifiers: true,
			ChunkSize:         1000,
			CopyBufferSize:    4096,
			Table:             "overrides",
			IDColumn:          "id",
			PayloadColumn:     "response",
		},
		Output: OutputConfig{
			Directory:    "logs",
			CSV:          true,
			LogFile:      "benchmark_results.log",
			Console:      true,
			ResultsTable: "benchmark_summaries",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Lock: LockConfig{
			Enabled: true,
			Name:    "lookupbench",
		},
	}
}
