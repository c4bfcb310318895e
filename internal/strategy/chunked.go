package strategy

import (
	"context"
	"fmt"

	"github.com/dbsmedya/lookupbench/internal/types"
)

const (
	chunkStatement     = "lookupbench_chunk"
	chunkTailStatement = "lookupbench_chunk_tail"
)

// newChunkedPrepared prepares an IN ($1..$n) statement for full chunks and,
// when the set does not divide evenly, a second one sized for the final chunk.
// Results are concatenated in chunk order.
func newChunkedPrepared(q queries, chunkSize int) *strategy {
	fullSQL := q.inPlaceholders(chunkSize)
	return &strategy{
		name:        ChunkedPrepared,
		description: fmt.Sprintf("Splits ids into chunks of %d and runs one prepared statement per chunk", chunkSize),
		execute: func(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error) {
			chunks := ids.Chunks(chunkSize)

			var stmts []statement
			if len(chunks[0]) == chunkSize {
				stmts = append(stmts, statement{chunkStatement, fullSQL})
			}
			if last := chunks[len(chunks)-1]; len(last) < chunkSize {
				stmts = append(stmts, statement{chunkTailStatement, q.inPlaceholders(len(last))})
			}

			return withPreparedAll(ctx, s, stmts, func() (types.RowSet, error) {
				out := make(types.RowSet, 0, ids.Len())
				for _, chunk := range chunks {
					name := chunkStatement
					if len(chunk) < chunkSize {
						name = chunkTailStatement
					}
					rows, err := s.Query(ctx, name, int64Args(chunk)...)
					if err != nil {
						return nil, fmt.Errorf("chunk of %d: %w", len(chunk), err)
					}
					out = append(out, rows...)
				}
				return out, nil
			})
		},
	}
}

type statement struct {
	name string
	sql  string
}

// withPreparedAll nests withPrepared so every statement is deallocated on
// every exit path, including a failure to prepare a later one.
func withPreparedAll(ctx context.Context, s types.Session, stmts []statement, fn func() (types.RowSet, error)) (types.RowSet, error) {
	if len(stmts) == 0 {
		return fn()
	}
	return withPrepared(ctx, s, stmts[0].name, stmts[0].sql, func() (types.RowSet, error) {
		return withPreparedAll(ctx, s, stmts[1:], fn)
	})
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
