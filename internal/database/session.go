package database

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// StatementPrefix is the name prefix of every prepared statement a strategy
// creates. TransientObjects only reports statements carrying it.
const StatementPrefix = "lookupbench_"

const transientObjectsSQL = `
SELECT 'table ' || c.relname
  FROM pg_class c
 WHERE c.relnamespace = pg_my_temp_schema()
   AND c.relkind = 'r'
UNION ALL
SELECT 'statement ' || s.name
  FROM pg_prepared_statements s
 WHERE starts_with(s.name, $1)
 ORDER BY 1`

// Session adapts one pooled connection to types.Session.
type Session struct {
	conn *pgxpool.Conn
}

// Query materializes every (id, payload) row before returning. A NULL
// payload becomes the empty string.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (types.RowSet, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Row, error) {
		var r types.Row
		var payload *string
		if err := row.Scan(&r.ID, &payload); err != nil {
			return r, err
		}
		if payload != nil {
			r.Payload = *payload
		}
		return r, nil
	})
}

func (s *Session) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := s.conn.Exec(ctx, sql, args...)
	return err
}

// Prepare creates a named statement; later Query calls may pass name as sql.
func (s *Session) Prepare(ctx context.Context, name, sql string) error {
	_, err := s.conn.Conn().Prepare(ctx, name, sql)
	return err
}

func (s *Session) Deallocate(ctx context.Context, name string) error {
	return s.conn.Conn().Deallocate(ctx, name)
}

// CopyFrom sends r verbatim as the COPY data stream.
func (s *Session) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	tag, err := s.conn.Conn().PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TransientObjects lists temporary tables on this connection and prepared
// statements named with StatementPrefix.
func (s *Session) TransientObjects(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, transientObjectsSQL, StatementPrefix)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Reset drops temporary tables and every prepared statement on the connection.
func (s *Session) Reset(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "DISCARD TEMP"); err != nil {
		return err
	}
	return s.conn.Conn().DeallocateAll(ctx)
}

func (s *Session) Release() {
	s.conn.Release()
}
