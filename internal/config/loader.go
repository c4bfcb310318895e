package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// EnvDatabaseURL is consulted when neither the config file nor the CLI sets a URL.
const EnvDatabaseURL = "DATABASE_URL"

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
// An empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		cfg := DefaultConfig()
		finalize(cfg)
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	finalize(cfg)
	return cfg, nil
}

func finalize(cfg *Config) {
	substituteEnvVars(cfg)
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	}
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	db := &cfg.Database
	db.URL = expandEnvVar(db.URL)
	db.Host = expandEnvVar(db.Host)
	db.User = expandEnvVar(db.User)
	db.Password = expandEnvVar(db.Password)
	db.Database = expandEnvVar(db.Database)

	cfg.Output.Directory = expandEnvVar(cfg.Output.Directory)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// Overrides carries CLI flag values. Zero values leave the config untouched.
type Overrides struct {
	LogLevel    string
	LogFormat   string
	Iterations  int
	TestIDs     int
	DatabaseURL string
	Strategies  []string
	OutputDir   string
	NoLock      bool
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Iterations > 0 {
		c.Benchmark.Iterations = o.Iterations
	}
	if o.TestIDs > 0 {
		c.Benchmark.IdentifierCount = o.TestIDs
	}
	if o.DatabaseURL != "" {
		c.Database.URL = o.DatabaseURL
	}
	if len(o.Strategies) > 0 {
		c.Benchmark.Strategies = o.Strategies
	}
	if o.OutputDir != "" {
		c.Output.Directory = o.OutputDir
	}
	if o.NoLock {
		c.Lock.Enabled = false
	}
}
