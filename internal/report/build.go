package report

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dbsmedya/lookupbench/internal/config"
)

// Build assembles the sinks enabled in cfg. db is only used when results
// are stored in the database and may be nil otherwise.
func Build(ctx context.Context, cfg *config.OutputConfig, db *sql.DB, console io.Writer, colorize bool) (*Multi, error) {
	// Created before any file is opened so a failure leaves nothing to close.
	var dbSink *DBSink
	if cfg.StoreResults {
		s, err := NewDBSink(ctx, db, cfg.ResultsTable)
		if err != nil {
			return nil, err
		}
		dbSink = s
	}

	if cfg.CSV || cfg.LogFile != "" || cfg.JSON {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.Directory, err)
		}
	}

	m := NewMulti()
	if cfg.Console {
		m.Add(NewConsoleSink(console, colorize))
	}
	if cfg.CSV {
		s, err := NewCSVSink(cfg.Directory)
		if err != nil {
			return nil, err
		}
		m.Add(s)
	}
	if cfg.LogFile != "" {
		m.Add(NewLogFileSink(outputPath(cfg.Directory, cfg.LogFile)))
	}
	if cfg.JSON {
		m.Add(NewJSONSink(filepath.Join(cfg.Directory, JSONFile)))
	}
	if dbSink != nil {
		m.Add(dbSink)
	}
	return m, nil
}

// outputPath places relative names inside dir.
func outputPath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
