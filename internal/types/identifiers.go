package types

// IdentifierSet is the fixed collection of lookup keys used for every trial
// of every strategy in one run. It is immutable once built.
type IdentifierSet struct {
	ids []int64
}

// NewIdentifierSet takes a private copy of ids.
func NewIdentifierSet(ids []int64) IdentifierSet {
	cp := make([]int64, len(ids))
	copy(cp, ids)
	return IdentifierSet{ids: cp}
}

// Len returns the number of identifiers.
func (s IdentifierSet) Len() int {
	return len(s.ids)
}

// At returns the i-th identifier.
func (s IdentifierSet) At(i int) int64 {
	return s.ids[i]
}

// Values exposes the backing slice so strategies can bind it as an array
// parameter without copying 60k keys inside the timed window.
// Callers must not modify it.
func (s IdentifierSet) Values() []int64 {
	return s.ids
}

// Chunks splits the set into consecutive slices of at most size elements, in order.
// The returned slices share the backing array.
func (s IdentifierSet) Chunks(size int) [][]int64 {
	if size <= 0 || len(s.ids) == 0 {
		return nil
	}
	chunks := make([][]int64, 0, (len(s.ids)+size-1)/size)
	for start := 0; start < len(s.ids); start += size {
		end := start + size
		if end > len(s.ids) {
			end = len(s.ids)
		}
		chunks = append(chunks, s.ids[start:end:end])
	}
	return chunks
}
