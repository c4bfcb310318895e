// Package pgcopy encodes and decodes the PostgreSQL COPY BINARY row format.
//
// Stream layout (all integers big-endian):
//
//	header   11-byte signature, int32 flags, int32 header extension length, extension bytes
//	row      int16 field count, then per field an int32 length (-1 = NULL) and the raw bytes
//	trailer  int16 -1
package pgcopy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Signature is the fixed 11-byte marker that opens every binary COPY stream.
var Signature = [11]byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xFF, '\r', '\n', 0x00}

const (
	// HeaderSize is the size of a header without extension area.
	HeaderSize = len(Signature) + 4 + 4
	// TrailerSize is the size of the end-of-data marker.
	TrailerSize = 2

	nullLength   int32 = -1
	trailerCount int16 = -1

	// Unsigned wire forms of the two sentinels above.
	nullLengthWire   uint32 = 0xFFFFFFFF
	trailerCountWire uint16 = 0xFFFF

	// flagOIDs marks a stream whose rows carry an OID field.
	flagOIDs uint32 = 1 << 16
	// criticalFlags are bits 16-31; a reader must abort on any it does not
	// understand. Bits 0-15 are backwards-compatible and ignored.
	criticalFlags uint32 = 0xFFFF0000
)

// Kind is the on-wire representation of a field.
type Kind int

const (
	// KindInt8 is an 8-byte two's-complement integer (bigint).
	KindInt8 Kind = iota
	// KindText is raw UTF-8 without terminator.
	KindText
	// KindBytea is raw bytes.
	KindBytea
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindText:
		return "text"
	case KindBytea:
		return "bytea"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one field of the row layout.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Schema is the expected row layout for a stream.
type Schema []Column

// IDSchema is the single bigint column streamed into lookup temp tables.
var IDSchema = Schema{{Name: "id", Kind: KindInt8}}

// RowSchema is the (id, payload) layout of the lookup table.
var RowSchema = Schema{{Name: "id", Kind: KindInt8}, {Name: "payload", Kind: KindText, Nullable: true}}

// ErrCodecMismatch is returned when data disagrees with the expected schema.
var ErrCodecMismatch = errors.New("codec mismatch")

// ErrBadHeader is returned for a stream that does not start with a valid header.
var ErrBadHeader = errors.New("invalid binary copy header")

// MismatchError reports where a row disagreed with the schema.
type MismatchError struct {
	Row    int
	Field  int // -1 when the field count itself is wrong
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("%v: row %d: %s", ErrCodecMismatch, e.Row, e.Reason)
	}
	return fmt.Sprintf("%v: row %d field %d: %s", ErrCodecMismatch, e.Row, e.Field, e.Reason)
}

// Is matches ErrCodecMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrCodecMismatch
}

// check validates one encoded field value against its column.
func (c Column) check(v []byte) string {
	if v == nil {
		if !c.Nullable {
			return fmt.Sprintf("column %q is not nullable", c.Name)
		}
		return ""
	}
	if len(v) > math.MaxInt32 {
		return fmt.Sprintf("column %q value of %d bytes exceeds int32 length", c.Name, len(v))
	}
	if c.Kind == KindInt8 && len(v) != 8 {
		return fmt.Sprintf("column %q expects 8 bytes for int8, got %d", c.Name, len(v))
	}
	return ""
}

// Int8 returns the wire representation of a bigint.
func Int8(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// ParseInt8 decodes a bigint field.
func ParseInt8(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: int8 field has %d bytes", ErrCodecMismatch, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Text returns the wire representation of a text value. The result is
// never nil, so an empty string stays distinct from NULL.
func Text(s string) []byte {
	return append(make([]byte, 0, len(s)), s...)
}

// EncodedSize returns the exact byte size of a stream of n rows with the
// given fixed per-row field widths.
func EncodedSize(n int, fieldWidths ...int) int {
	row := 2
	for _, w := range fieldWidths {
		row += 4 + w
	}
	return HeaderSize + n*row + TrailerSize
}

func appendHeader(dst []byte) []byte {
	dst = append(dst, Signature[:]...)
	dst = binary.BigEndian.AppendUint32(dst, 0)
	return binary.BigEndian.AppendUint32(dst, 0)
}

func appendTrailer(dst []byte) []byte {
	return binary.BigEndian.AppendUint16(dst, trailerCountWire)
}
