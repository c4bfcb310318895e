package pgcopy

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultBufferSize is the number of encoded bytes an Encoder accumulates
// before writing through to the underlying writer.
const DefaultBufferSize = 64 * 1024

// Encoder writes rows in binary COPY format. The header is emitted before
// the first row; Close emits the trailer.
type Encoder struct {
	w       io.Writer
	schema  Schema
	buf     []byte
	flushAt int
	rows    int
	started bool
	closed  bool
}

// NewEncoder returns an Encoder that validates every row against schema.
func NewEncoder(w io.Writer, schema Schema) *Encoder {
	return &Encoder{
		w:       w,
		schema:  schema,
		buf:     make([]byte, 0, DefaultBufferSize),
		flushAt: DefaultBufferSize,
	}
}

// SetBufferSize changes the flush threshold. Values below one tuple still work.
func (e *Encoder) SetBufferSize(n int) {
	if n > 0 {
		e.flushAt = n
	}
}

// WriteRow encodes one row. A nil field is written as NULL; a non-nil empty
// field is written with length zero.
func (e *Encoder) WriteRow(fields ...[]byte) error {
	if e.closed {
		return fmt.Errorf("pgcopy: write after close")
	}
	e.rows++
	if len(fields) != len(e.schema) {
		return &MismatchError{
			Row:    e.rows,
			Field:  -1,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(e.schema), len(fields)),
		}
	}
	for i, f := range fields {
		if reason := e.schema[i].check(f); reason != "" {
			return &MismatchError{Row: e.rows, Field: i, Reason: reason}
		}
	}

	if !e.started {
		e.buf = appendHeader(e.buf)
		e.started = true
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(fields)))
	for _, f := range fields {
		if f == nil {
			e.buf = binary.BigEndian.AppendUint32(e.buf, nullLengthWire)
			continue
		}
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(f)))
		e.buf = append(e.buf, f...)
	}

	if len(e.buf) >= e.flushAt {
		return e.flush()
	}
	return nil
}

// Rows returns the number of rows written so far.
func (e *Encoder) Rows() int {
	return e.rows
}

// Close writes the trailer and flushes. It does not close the underlying writer.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if !e.started {
		e.buf = appendHeader(e.buf)
		e.started = true
	}
	e.buf = appendTrailer(e.buf)
	return e.flush()
}

func (e *Encoder) flush() error {
	if len(e.buf) == 0 {
		return nil
	}
	if _, err := e.w.Write(e.buf); err != nil {
		return fmt.Errorf("pgcopy: write: %w", err)
	}
	e.buf = e.buf[:0]
	return nil
}

// idTupleSize is one encoded single-bigint row: count, length, value.
const idTupleSize = 2 + 4 + 8

// AppendIDs appends a complete stream (header, one bigint row per id,
// trailer) to dst. Callers that pre-size dst with EncodedSize(len(ids), 8)
// get a single allocation.
func AppendIDs(dst []byte, ids []int64) []byte {
	dst = appendHeader(dst)
	for _, id := range ids {
		dst = binary.BigEndian.AppendUint16(dst, 1)
		dst = binary.BigEndian.AppendUint32(dst, 8)
		dst = binary.BigEndian.AppendUint64(dst, uint64(id))
	}
	return appendTrailer(dst)
}

// IDReader streams ids as a binary COPY of a single bigint column. Rows are
// produced chunk by chunk into a reused buffer whose tuple framing is
// written once, so only the id bytes change between chunks.
type IDReader struct {
	ids      []int64
	next     int
	template []byte
	pending  []byte
	stage    int
}

const (
	stageHeader = iota
	stageRows
	stageTrailer
	stageDone
)

// NewIDReader returns a reader over ids using chunks of at most chunkBytes.
// The chunk is rounded down to a whole number of tuples, minimum one.
func NewIDReader(ids []int64, chunkBytes int) *IDReader {
	tuples := chunkBytes / idTupleSize
	if tuples < 1 {
		tuples = 1
	}
	template := make([]byte, tuples*idTupleSize)
	for off := 0; off < len(template); off += idTupleSize {
		binary.BigEndian.PutUint16(template[off:], 1)
		binary.BigEndian.PutUint32(template[off+2:], 8)
	}
	return &IDReader{ids: ids, template: template}
}

// Read implements io.Reader.
func (r *IDReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.stage == stageDone {
			return 0, io.EOF
		}
		r.fill()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *IDReader) fill() {
	switch r.stage {
	case stageHeader:
		r.pending = appendHeader(make([]byte, 0, HeaderSize))
		r.stage = stageRows
	case stageRows:
		if r.next >= len(r.ids) {
			r.stage = stageTrailer
			return
		}
		n := len(r.template) / idTupleSize
		if remaining := len(r.ids) - r.next; remaining < n {
			n = remaining
		}
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint64(r.template[i*idTupleSize+6:], uint64(r.ids[r.next+i]))
		}
		r.next += n
		r.pending = r.template[:n*idTupleSize]
	case stageTrailer:
		r.pending = appendTrailer(make([]byte, 0, TrailerSize))
		r.stage = stageDone
	}
}
