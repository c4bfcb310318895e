package strategy

import (
	"context"

	"github.com/dbsmedya/lookupbench/internal/types"
)

func newAnyArray(q queries) *strategy {
	sql := q.anyArray()
	return &strategy{
		name:        AnyArray,
		description: "Uses PostgreSQL's ANY operator with a single bigint array parameter",
		execute: func(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error) {
			rows, err := s.Query(ctx, sql, ids.Values())
			return rows, types.Execution(err)
		},
	}
}

func newUnnestArray(q queries) *strategy {
	sql := q.unnestArray()
	return &strategy{
		name:        UnnestArray,
		description: "Uses UNNEST to expand a bigint array parameter into a set for IN",
		execute: func(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error) {
			rows, err := s.Query(ctx, sql, ids.Values())
			return rows, types.Execution(err)
		},
	}
}

// newRawSQLLargeIn builds the query text inside the timed call: composing
// the literal list is part of the cost this strategy measures.
func newRawSQLLargeIn(q queries) *strategy {
	return &strategy{
		name:        RawSQLLargeIn,
		description: "Builds a large IN list of literals with no bound parameters to isolate binding overhead",
		execute: func(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error) {
			rows, err := s.Query(ctx, q.literalIn(ids.Values()))
			return rows, types.Execution(err)
		},
	}
}
