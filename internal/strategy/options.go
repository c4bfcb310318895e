package strategy

import (
	"strconv"
	"strings"

	"github.com/dbsmedya/lookupbench/internal/sqlutil"
)

// Options parameterizes every strategy with the lookup table layout and tuning knobs.
type Options struct {
	Table          string
	IDColumn       string
	PayloadColumn  string
	ChunkSize      int
	CopyBufferSize int
}

// DefaultOptions matches the default configuration.
func DefaultOptions() Options {
	return Options{
		Table:          "overrides",
		IDColumn:       "id",
		PayloadColumn:  "response",
		ChunkSize:      1000,
		CopyBufferSize: 4096,
	}
}

// queries holds the SQL text shared by strategies, built once per registry.
type queries struct {
	selectPrefix string // SELECT id, payload FROM table WHERE id
	id           string
	payload      string
	table        string
}

func newQueries(o Options) queries {
	q := queries{
		id:      sqlutil.QuoteIdentifier(o.IDColumn),
		payload: sqlutil.QuoteIdentifier(o.PayloadColumn),
		table:   sqlutil.QuoteQualified(o.Table),
	}
	q.selectPrefix = "SELECT " + q.id + ", " + q.payload + " FROM " + q.table + " WHERE " + q.id
	return q
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	var b strings.Builder
	b.Grow(n * 6)
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

func (q queries) inPlaceholders(n int) string {
	return q.selectPrefix + " IN (" + placeholders(n) + ")"
}

func (q queries) anyArray() string {
	return q.selectPrefix + " = ANY($1)"
}

func (q queries) unnestArray() string {
	return q.selectPrefix + " IN (SELECT UNNEST($1::bigint[]))"
}

func (q queries) inTempTable() string {
	return q.selectPrefix + " IN (SELECT id FROM " + TempTable + ")"
}

func (q queries) anyTempTable() string {
	return q.selectPrefix + " = ANY(ARRAY(SELECT id FROM " + TempTable + "))"
}

func (q queries) joinTempTable() string {
	return "SELECT o." + q.id + ", o." + q.payload + " FROM " + q.table + " o JOIN " + TempTable + " t ON o." + q.id + " = t.id"
}

// literalIn inlines every id as a decimal literal.
func (q queries) literalIn(ids []int64) string {
	var b strings.Builder
	b.Grow(len(q.selectPrefix) + 8 + len(ids)*10)
	b.WriteString(q.selectPrefix)
	b.WriteString(" IN (")
	buf := make([]byte, 0, 20)
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		buf = strconv.AppendInt(buf[:0], id, 10)
		b.Write(buf)
	}
	b.WriteByte(')')
	return b.String()
}
