// Package seed creates and fills the lookup table the benchmark reads from.
package seed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dbsmedya/lookupbench/internal/logger"
	"github.com/dbsmedya/lookupbench/internal/sqlutil"
)

// DefaultBatchSize is the number of rows sent per COPY.
const DefaultBatchSize = 500_000

// Conn is the subset of *pgxpool.Pool and *pgx.Conn the seeder needs.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Options describes the table to build.
type Options struct {
	Table         string
	IDColumn      string
	PayloadColumn string
	Rows          int64
	BatchSize     int64
	// Drop recreates the table instead of truncating an existing one.
	Drop bool
}

// Payload returns the payload stored for id.
func Payload(id int64) string {
	return "response-" + strconv.FormatInt(id, 10)
}

// Seeder loads ids 1..Rows with their payloads.
type Seeder struct {
	conn   Conn
	opts   Options
	ident  pgx.Identifier
	table  string // quoted
	id     string // quoted
	pay    string // quoted
	logger *logger.Logger
}

// New validates opts and returns a Seeder.
func New(conn Conn, opts Options, log *logger.Logger) (*Seeder, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}
	if opts.Rows < 1 {
		return nil, fmt.Errorf("rows must be positive, got %d", opts.Rows)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	table, err := sqlutil.QuoteQualifiedSafe(opts.Table)
	if err != nil {
		return nil, err
	}
	id, err := sqlutil.QuoteIdentifierSafe(opts.IDColumn)
	if err != nil {
		return nil, err
	}
	pay, err := sqlutil.QuoteIdentifierSafe(opts.PayloadColumn)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault()
	}

	ident := pgx.Identifier{opts.Table}
	if schema, rel := sqlutil.SplitQualified(opts.Table); schema != "" {
		ident = pgx.Identifier{schema, rel}
	}

	return &Seeder{
		conn:   conn,
		opts:   opts,
		ident:  ident,
		table:  table,
		id:     id,
		pay:    pay,
		logger: log.WithTable(opts.Table),
	}, nil
}

// Statements returns the DDL run before loading, in order.
func (s *Seeder) Statements() []string {
	var stmts []string
	if s.opts.Drop {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+s.table)
	}
	stmts = append(stmts,
		"CREATE TABLE IF NOT EXISTS "+s.table+" ("+s.id+" BIGINT PRIMARY KEY, "+s.pay+" TEXT NOT NULL)",
		"TRUNCATE "+s.table,
	)
	return stmts
}

// Run creates the table, loads every row and analyzes the table so the
// planner sees its real size. It returns the number of rows loaded.
func (s *Seeder) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	s.logger.Infow("Seeding lookup table", "rows", s.opts.Rows, "batch_size", s.opts.BatchSize, "drop", s.opts.Drop)

	for _, stmt := range s.Statements() {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to prepare table: %w", err)
		}
	}

	var loaded int64
	for first := int64(1); first <= s.opts.Rows; first += s.opts.BatchSize {
		n := s.opts.BatchSize
		if remaining := s.opts.Rows - first + 1; remaining < n {
			n = remaining
		}

		copied, err := s.conn.CopyFrom(ctx, s.ident, []string{s.opts.IDColumn, s.opts.PayloadColumn},
			pgx.CopyFromSlice(int(n), func(i int) ([]any, error) {
				id := first + int64(i)
				return []any{id, Payload(id)}, nil
			}),
		)
		if err != nil {
			return loaded, fmt.Errorf("failed to copy rows %d..%d: %w", first, first+n-1, err)
		}
		if copied != n {
			return loaded + copied, fmt.Errorf("only %d out of %d rows were copied", copied, n)
		}
		loaded += copied
		s.logger.Debugf("Loaded %s of %s rows", humanize.Comma(loaded), humanize.Comma(s.opts.Rows))
	}

	if _, err := s.conn.Exec(ctx, "ANALYZE "+s.table); err != nil {
		return loaded, fmt.Errorf("failed to analyze table: %w", err)
	}

	s.logger.Infow("Seeding complete", "rows", loaded, "duration", time.Since(start))
	return loaded, nil
}
