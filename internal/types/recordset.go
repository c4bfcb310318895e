// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Row is one record of the lookup table: the identifier and its opaque payload.
type Row struct {
	ID      int64
	Payload string
}

// RowSet is the fully materialized result of one retrieval.
type RowSet []Row

// Len returns the number of rows.
func (rs RowSet) Len() int {
	return len(rs)
}

// Digest returns an order-independent SHA-256 of the rows. Two strategies that
// returned the same rows in a different order produce the same digest.
func (rs RowSet) Digest() string {
	sorted := make(RowSet, len(rs))
	copy(sorted, rs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Payload < sorted[j].Payload
	})

	h := sha256.New()
	var buf [8]byte
	for _, r := range sorted {
		binary.BigEndian.PutUint64(buf[:], uint64(r.ID))
		h.Write(buf[:])
		binary.BigEndian.PutUint32(buf[:4], uint32(len(r.Payload)))
		h.Write(buf[:4])
		h.Write([]byte(r.Payload))
	}
	return hex.EncodeToString(h.Sum(nil))
}
