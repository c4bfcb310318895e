package strategy

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// Registry maps stable strategy names to instances, preserving registration order.
type Registry struct {
	strategies *orderedmap.OrderedMap[string, types.Strategy]
}

// NewRegistry builds every strategy for the given options.
func NewRegistry(opts Options) *Registry {
	q := newQueries(opts)
	r := &Registry{strategies: orderedmap.NewOrderedMap[string, types.Strategy]()}

	for _, st := range []*strategy{
		newChunkedPrepared(q, opts.ChunkSize),
		newAnyArray(q),
		newUnnestArray(q),
		newTempTableTextCopy(q),
		newTempTableBinaryCopy(q, opts.CopyBufferSize),
		newTempTableJoin(q, opts.CopyBufferSize),
		newTempTableAny(q, opts.CopyBufferSize),
		newRawSQLLargeIn(q),
		newTempTableBinaryNoIndex(q),
	} {
		r.strategies.Set(st.name, st)
	}
	return r
}

// Names returns all strategy names in registration order.
func (r *Registry) Names() []string {
	return r.strategies.Keys()
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (types.Strategy, bool) {
	return r.strategies.Get(name)
}

// All returns every strategy in registration order.
func (r *Registry) All() []types.Strategy {
	out := make([]types.Strategy, 0, r.strategies.Len())
	for el := r.strategies.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// Select returns the named strategies in the order given; no names selects all.
func (r *Registry) Select(names []string) ([]types.Strategy, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	out := make([]types.Strategy, 0, len(names))
	var unknown []string
	for _, name := range names {
		st, ok := r.strategies.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, st)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown strategies: %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(r.Names(), ", "))
	}
	return out, nil
}
