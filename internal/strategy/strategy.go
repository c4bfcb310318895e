// Package strategy implements the id-lookup strategies under comparison.
//
// Every strategy is a value of the closed set built by the constructors in
// this package; they differ only in the body of Execute. Transient objects
// (the lookup_ids temporary table and lookupbench_ prepared statements) are
// created through scoped guards that remove them on every exit path.
package strategy

import (
	"context"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// Strategy names.
const (
	ChunkedPrepared        = "chunked_prepared"
	AnyArray               = "any_array"
	UnnestArray            = "unnest_array"
	TempTableTextCopy      = "temp_table_text_copy"
	TempTableBinaryCopy    = "temp_table_binary_copy"
	TempTableJoin          = "temp_table_join"
	TempTableAny           = "temp_table_any"
	RawSQLLargeIn          = "raw_sql_large_in"
	TempTableBinaryNoIndex = "temp_table_binary_no_index"
)

type executeFunc func(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error)

// strategy is the single concrete types.Strategy.
type strategy struct {
	name        string
	description string
	execute     executeFunc
}

func (st *strategy) Name() string        { return st.name }
func (st *strategy) Description() string { return st.description }

// Execute runs one retrieval. An empty identifier set returns no rows
// without touching the session.
func (st *strategy) Execute(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error) {
	if ids.Len() == 0 {
		return types.RowSet{}, nil
	}
	return st.execute(ctx, s, ids)
}
