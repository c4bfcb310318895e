package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test database defaults
	if cfg.Database.Port != 5432 {
		t.Errorf("expected database port 5432, got %d", cfg.Database.Port)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("expected sslmode 'disable', got %s", cfg.Database.SSLMode)
	}
	if cfg.Database.MaxConnections != 10 {
		t.Errorf("expected max_connections 10, got %d", cfg.Database.MaxConnections)
	}

	// Test benchmark defaults
	b := cfg.Benchmark
	if b.Iterations != 100 {
		t.Errorf("expected iterations 100, got %d", b.Iterations)
	}
	if b.IdentifierCount != 60000 {
		t.Errorf("expected identifier_count 60000, got %d", b.IdentifierCount)
	}
	if b.IdentifierRange != 20_000_000 {
		t.Errorf("expected identifier_range 20000000, got %d", b.IdentifierRange)
	}
	if !b.UniqueIdentifiers {
		t.Error("expected unique_identifiers by default")
	}
	if b.ChunkSize != 1000 {
		t.Errorf("expected chunk_size 1000, got %d", b.ChunkSize)
	}
	if b.CopyBufferSize != 4096 {
		t.Errorf("expected copy_buffer_size 4096, got %d", b.CopyBufferSize)
	}
	if b.TrialTimeout != 0 {
		t.Errorf("expected no trial timeout, got %s", b.TrialTimeout)
	}
	if b.Table != "overrides" || b.IDColumn != "id" || b.PayloadColumn != "response" {
		t.Errorf("unexpected lookup table defaults: %s(%s, %s)", b.Table, b.IDColumn, b.PayloadColumn)
	}

	// Test output defaults
	if !cfg.Output.CSV || !cfg.Output.Console || cfg.Output.JSON {
		t.Errorf("unexpected output defaults: %+v", cfg.Output)
	}

	// Test lock defaults
	if !cfg.Lock.Enabled || cfg.Lock.Name != "lookupbench" {
		t.Errorf("unexpected lock defaults: %+v", cfg.Lock)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %s", cfg.Logging.Level)
	}
}

func TestDefaultConfigIsValidWithURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.URL = "postgres://bench@localhost/bench"

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults plus URL to validate, got: %v", err)
	}
}

func TestTrialTimeoutDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Benchmark.TrialTimeout = 30 * time.Second
	if cfg.Benchmark.TrialTimeout.Seconds() != 30 {
		t.Errorf("expected 30s, got %s", cfg.Benchmark.TrialTimeout)
	}
}
