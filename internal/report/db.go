package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbsmedya/lookupbench/internal/sqlutil"
	"github.com/dbsmedya/lookupbench/internal/types"
)

// DBSink inserts each summary into a results table so runs can be compared
// over time with SQL.
type DBSink struct {
	db    *sql.DB
	table string // quoted
}

// NewDBSink validates table and creates it if missing.
func NewDBSink(ctx context.Context, db *sql.DB, table string) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	quoted, err := sqlutil.QuoteQualifiedSafe(table)
	if err != nil {
		return nil, fmt.Errorf("invalid results table: %w", err)
	}
	s := &DBSink{db: db, table: quoted}
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureTable creates the results table if it does not exist.
func (s *DBSink) EnsureTable(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL,
		benchmark_name TEXT NOT NULL,
		description TEXT NOT NULL,
		input_size INTEGER NOT NULL,
		rows_returned INTEGER NOT NULL,
		total_runs INTEGER NOT NULL,
		configured_runs INTEGER NOT NULL,
		partial BOOLEAN NOT NULL,
		status TEXT NOT NULL,
		mean_ns BIGINT NOT NULL,
		median_ns BIGINT NOT NULL,
		std_dev_ns BIGINT NOT NULL,
		min_ns BIGINT NOT NULL,
		max_ns BIGINT NOT NULL,
		p50_ns BIGINT NOT NULL,
		p95_ns BIGINT NOT NULL,
		p99_ns BIGINT NOT NULL,
		rows_digest TEXT,
		failure TEXT,
		warnings TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create results table %s: %w", s.table, err)
	}
	return nil
}

func (s *DBSink) insertSQL() string {
	return `INSERT INTO ` + s.table + ` (run_id, benchmark_name, description, input_size, rows_returned,
		total_runs, configured_runs, partial, status, mean_ns, median_ns, std_dev_ns, min_ns, max_ns,
		p50_ns, p95_ns, p99_ns, rows_digest, failure, warnings, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
}

func (s *DBSink) Report(ctx context.Context, summary types.Summary, _ []types.TimingSample) error {
	_, err := s.db.ExecContext(ctx, s.insertSQL(),
		summary.RunID,
		summary.Name,
		summary.Description,
		summary.InputSize,
		summary.RowsReturned,
		summary.CompletedRuns,
		summary.ConfiguredRuns,
		summary.Partial,
		string(summary.Status),
		types.ToNanos(summary.Mean),
		types.ToNanos(summary.Median),
		types.ToNanos(summary.StdDev),
		types.ToNanos(summary.Min),
		types.ToNanos(summary.Max),
		types.ToNanos(summary.P50),
		types.ToNanos(summary.P95),
		types.ToNanos(summary.P99),
		nullString(summary.RowsDigest),
		nullString(summary.Failure),
		nullString(strings.Join(summary.Warnings, "\n")),
		summary.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store summary for %s: %w", summary.Name, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the database manager.
func (s *DBSink) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
