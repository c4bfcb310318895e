package strategy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dbsmedya/lookupbench/internal/pgcopy"
	"github.com/dbsmedya/lookupbench/internal/types"
)

const (
	createIndexedSQL   = "CREATE TEMPORARY TABLE " + TempTable + " (id BIGINT PRIMARY KEY)"
	createUnindexedSQL = "CREATE TEMPORARY TABLE " + TempTable + " (id BIGINT STORAGE PLAIN)"
	copyTextSQL        = "COPY " + TempTable + " (id) FROM STDIN"
	copyBinarySQL      = "COPY " + TempTable + " (id) FROM STDIN WITH (FORMAT BINARY)"
)

// loader streams the identifier set into TempTable.
type loader func(ctx context.Context, s types.Session, ids []int64) error

// bulkLoad returns the execute body shared by every temporary-table strategy:
// create, load, query, drop.
func bulkLoad(ddl string, load loader, query string) executeFunc {
	return func(ctx context.Context, s types.Session, ids types.IdentifierSet) (types.RowSet, error) {
		return withTempTable(ctx, s, ddl, func() (types.RowSet, error) {
			if err := load(ctx, s, ids.Values()); err != nil {
				return nil, err
			}
			return s.Query(ctx, query)
		})
	}
}

func copyRows(ctx context.Context, s types.Session, r io.Reader, sql string, want int) error {
	n, err := s.CopyFrom(ctx, r, sql)
	if err != nil {
		return fmt.Errorf("copy into %s: %w", TempTable, err)
	}
	if n != int64(want) {
		return fmt.Errorf("copy into %s loaded %d rows, expected %d", TempTable, n, want)
	}
	return nil
}

// loadBinaryStreamed encodes ids chunk by chunk into a reused buffer of chunkBytes.
func loadBinaryStreamed(chunkBytes int) loader {
	return func(ctx context.Context, s types.Session, ids []int64) error {
		return copyRows(ctx, s, pgcopy.NewIDReader(ids, chunkBytes), copyBinarySQL, len(ids))
	}
}

// loadBinaryWhole encodes the complete stream up front and sends it in one piece.
func loadBinaryWhole(ctx context.Context, s types.Session, ids []int64) error {
	buf := pgcopy.AppendIDs(make([]byte, 0, pgcopy.EncodedSize(len(ids), 8)), ids)
	return copyRows(ctx, s, bytes.NewReader(buf), copyBinarySQL, len(ids))
}

// loadText sends one decimal id per line in COPY text format.
func loadText(ctx context.Context, s types.Session, ids []int64) error {
	buf := make([]byte, 0, len(ids)*10)
	for _, id := range ids {
		buf = strconv.AppendInt(buf, id, 10)
		buf = append(buf, '\n')
	}
	return copyRows(ctx, s, bytes.NewReader(buf), copyTextSQL, len(ids))
}

func newTempTableTextCopy(q queries) *strategy {
	return &strategy{
		name:        TempTableTextCopy,
		description: "Creates a temporary table, loads it with text-format COPY and queries with IN (SELECT ...)",
		execute:     bulkLoad(createIndexedSQL, loadText, q.inTempTable()),
	}
}

func newTempTableBinaryCopy(q queries, chunkBytes int) *strategy {
	return &strategy{
		name:        TempTableBinaryCopy,
		description: fmt.Sprintf("Creates a temporary table, streams binary COPY in %d-byte chunks and queries with IN (SELECT ...)", chunkBytes),
		execute:     bulkLoad(createIndexedSQL, loadBinaryStreamed(chunkBytes), q.inTempTable()),
	}
}

func newTempTableBinaryNoIndex(q queries) *strategy {
	return &strategy{
		name:        TempTableBinaryNoIndex,
		description: "Creates a temporary table without a primary key, sends one binary COPY buffer and queries with IN (SELECT ...)",
		execute:     bulkLoad(createUnindexedSQL, loadBinaryWhole, q.inTempTable()),
	}
}

func newTempTableJoin(q queries, chunkBytes int) *strategy {
	return &strategy{
		name:        TempTableJoin,
		description: "Creates a temporary table with binary COPY and uses JOIN instead of an IN clause",
		execute:     bulkLoad(createIndexedSQL, loadBinaryStreamed(chunkBytes), q.joinTempTable()),
	}
}

func newTempTableAny(q queries, chunkBytes int) *strategy {
	return &strategy{
		name:        TempTableAny,
		description: "Creates a temporary table with binary COPY and matches with = ANY(ARRAY(SELECT ...))",
		execute:     bulkLoad(createIndexedSQL, loadBinaryStreamed(chunkBytes), q.anyTempTable()),
	}
}
