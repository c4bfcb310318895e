package pgcopy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Decoder reads rows from a binary COPY stream and validates them against a schema.
type Decoder struct {
	r          *bufio.Reader
	schema     Schema
	rows       int
	headerRead bool
	done       bool
}

// NewDecoder returns a Decoder for r.
func NewDecoder(r io.Reader, schema Schema) *Decoder {
	return &Decoder{r: bufio.NewReader(r), schema: schema}
}

// ReadHeader consumes and validates the stream header. Next calls it
// implicitly, so calling it directly is only needed to fail fast.
func (d *Decoder) ReadHeader() error {
	if d.headerRead {
		return nil
	}
	var sig [len(Signature)]byte
	if _, err := io.ReadFull(d.r, sig[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if !bytes.Equal(sig[:], Signature[:]) {
		return fmt.Errorf("%w: signature mismatch", ErrBadHeader)
	}

	flags, err := d.readUint32()
	if err != nil {
		return fmt.Errorf("%w: flags: %v", ErrBadHeader, err)
	}
	if flags&flagOIDs != 0 {
		return fmt.Errorf("%w: streams with OIDs are not supported", ErrBadHeader)
	}
	if flags&criticalFlags != 0 {
		return fmt.Errorf("%w: unknown critical flags %#x", ErrBadHeader, flags&criticalFlags)
	}

	extLen, err := d.readUint32()
	if err != nil {
		return fmt.Errorf("%w: extension length: %v", ErrBadHeader, err)
	}
	if int32(extLen) < 0 {
		return fmt.Errorf("%w: negative extension length", ErrBadHeader)
	}
	if _, err := d.r.Discard(int(extLen)); err != nil {
		return fmt.Errorf("%w: extension area: %v", ErrBadHeader, err)
	}

	d.headerRead = true
	return nil
}

// Next returns the fields of the next row. A NULL field is nil; a
// zero-length field is a non-nil empty slice. It returns io.EOF after the
// trailer.
func (d *Decoder) Next() ([][]byte, error) {
	if d.done {
		return nil, io.EOF
	}
	if err := d.ReadHeader(); err != nil {
		return nil, err
	}

	count, err := d.readUint16()
	if err != nil {
		return nil, unexpected(err)
	}
	if int16(count) == trailerCount {
		d.done = true
		return nil, io.EOF
	}

	d.rows++
	if int(int16(count)) != len(d.schema) {
		return nil, &MismatchError{
			Row:    d.rows,
			Field:  -1,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(d.schema), int16(count)),
		}
	}

	fields := make([][]byte, len(d.schema))
	for i := range fields {
		raw, err := d.readUint32()
		if err != nil {
			return nil, unexpected(err)
		}
		length := int32(raw)
		switch {
		case length == nullLength:
			fields[i] = nil
		case length < 0:
			return nil, &MismatchError{Row: d.rows, Field: i, Reason: fmt.Sprintf("invalid length %d", length)}
		case d.schema[i].Kind == KindInt8 && length != 8:
			return nil, &MismatchError{Row: d.rows, Field: i, Reason: fmt.Sprintf("column %q expects 8 bytes for int8, got %d", d.schema[i].Name, length)}
		default:
			// Grows with the bytes actually present, not the declared length.
			var field bytes.Buffer
			if _, err := io.CopyN(&field, d.r, int64(length)); err != nil {
				return nil, unexpected(err)
			}
			fields[i] = field.Bytes()
			if fields[i] == nil {
				fields[i] = []byte{}
			}
		}
		if reason := d.schema[i].check(fields[i]); reason != "" {
			return nil, &MismatchError{Row: d.rows, Field: i, Reason: reason}
		}
	}
	return fields, nil
}

// ReadAll decodes every remaining row.
func (d *Decoder) ReadAll() ([][][]byte, error) {
	var rows [][][]byte
	for {
		fields, err := d.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, fields)
	}
}

func (d *Decoder) readUint16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// unexpected turns a clean EOF inside a row into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("pgcopy: truncated stream: %w", io.ErrUnexpectedEOF)
	}
	return err
}
