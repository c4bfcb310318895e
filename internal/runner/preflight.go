package runner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbsmedya/lookupbench/internal/config"
	"github.com/dbsmedya/lookupbench/internal/logger"
	"github.com/dbsmedya/lookupbench/internal/sqlutil"
)

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Details map[string]string
}

func (e *PreflightError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Check, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// PreflightReport describes the lookup table as found.
type PreflightReport struct {
	Table      string
	Columns    map[string]string // name -> formatted type
	IDIndexed  bool
	ApproxRows int64
	Warnings   []string
}

// integerTypes are the id column types a bigint lookup can be compared against.
var integerTypes = map[string]bool{
	"bigint":   true,
	"integer":  true,
	"smallint": true,
}

// PreflightChecker verifies the lookup table before any strategy runs.
type PreflightChecker struct {
	db            *sql.DB
	table         string
	idColumn      string
	payloadColumn string
	logger        *logger.Logger
}

// NewPreflightChecker creates a new preflight checker for the benchmark table.
func NewPreflightChecker(db *sql.DB, cfg *config.BenchmarkConfig, log *logger.Logger) (*PreflightChecker, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("benchmark config is nil")
	}
	if cfg.Table == "" || cfg.IDColumn == "" || cfg.PayloadColumn == "" {
		return nil, fmt.Errorf("table, id column and payload column are required")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &PreflightChecker{
		db:            db,
		table:         cfg.Table,
		idColumn:      cfg.IDColumn,
		payloadColumn: cfg.PayloadColumn,
		logger:        log.WithTable(cfg.Table),
	}, nil
}

// RunAllChecks runs every check. A missing table or column fails; a missing
// index on the id column is only a warning, since it may be the point of
// the experiment.
func (p *PreflightChecker) RunAllChecks(ctx context.Context) (*PreflightReport, error) {
	p.logger.Info("Running preflight checks...")

	report := &PreflightReport{Table: p.table}

	if err := p.ValidateTableExists(ctx); err != nil {
		return nil, err
	}

	columns, err := p.ValidateColumns(ctx)
	if err != nil {
		return nil, err
	}
	report.Columns = columns

	indexed, err := p.CheckIDIndexed(ctx)
	if err != nil {
		return nil, err
	}
	report.IDIndexed = indexed
	if !indexed {
		msg := fmt.Sprintf("column %s is not the leading column of any index; every strategy will scan %s", p.idColumn, p.table)
		report.Warnings = append(report.Warnings, msg)
		p.logger.Warn(msg)
	}

	rows, err := p.EstimateRows(ctx)
	if err != nil {
		return nil, err
	}
	report.ApproxRows = rows
	if rows == 0 {
		msg := fmt.Sprintf("table %s looks empty (or was never analyzed); run 'lookupbench seed' first", p.table)
		report.Warnings = append(report.Warnings, msg)
		p.logger.Warn(msg)
	}

	p.logger.Infow("All preflight checks PASSED",
		"approx_rows", report.ApproxRows,
		"id_indexed", report.IDIndexed,
	)
	return report, nil
}

// ValidateTableExists checks that the lookup table resolves on the search path.
func (p *PreflightChecker) ValidateTableExists(ctx context.Context) error {
	p.logger.Debug("Checking table existence...")

	const query = `SELECT to_regclass($1) IS NOT NULL`

	var exists bool
	if err := p.db.QueryRowContext(ctx, query, sqlutil.QuoteQualified(p.table)).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check table: %w", err)
	}
	if !exists {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: "Lookup table not found",
			Details: map[string]string{"table": p.table},
		}
	}
	return nil
}

// ValidateColumns checks that the id and payload columns exist and that the
// id column is an integer type.
func (p *PreflightChecker) ValidateColumns(ctx context.Context) (map[string]string, error) {
	p.logger.Debug("Checking columns...")

	const query = `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1)
		AND a.attnum > 0
		AND NOT a.attisdropped`

	rows, err := p.db.QueryContext(ctx, query, sqlutil.QuoteQualified(p.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		columns[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, col := range []string{p.idColumn, p.payloadColumn} {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &PreflightError{
			Check:   "COLUMN_CHECK",
			Message: "Columns not found in lookup table",
			Details: map[string]string{"table": p.table, "missing": strings.Join(missing, ", ")},
		}
	}

	if typ := columns[p.idColumn]; !integerTypes[typ] {
		return nil, &PreflightError{
			Check:   "COLUMN_TYPE_CHECK",
			Message: "Identifier column must be an integer type",
			Details: map[string]string{"column": p.idColumn, "type": typ},
		}
	}

	p.logger.Debugf("Column check PASSED (%d columns)", len(columns))
	return columns, nil
}

// CheckIDIndexed reports whether the id column leads some index.
func (p *PreflightChecker) CheckIDIndexed(ctx context.Context) (bool, error) {
	p.logger.Debug("Checking id column index...")

	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = i.indkey[0]
			WHERE i.indrelid = to_regclass($1)
			AND a.attname = $2
		)`

	var indexed bool
	if err := p.db.QueryRowContext(ctx, query, sqlutil.QuoteQualified(p.table), p.idColumn).Scan(&indexed); err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	return indexed, nil
}

// EstimateRows returns the planner's row estimate, which is free to read.
func (p *PreflightChecker) EstimateRows(ctx context.Context) (int64, error) {
	const query = `SELECT GREATEST(c.reltuples, 0)::bigint FROM pg_class c WHERE c.oid = to_regclass($1)`

	var rows int64
	if err := p.db.QueryRowContext(ctx, query, sqlutil.QuoteQualified(p.table)).Scan(&rows); err != nil {
		return 0, fmt.Errorf("failed to estimate rows: %w", err)
	}
	return rows, nil
}
