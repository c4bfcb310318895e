// Package idset generates the identifier sets lookups are benchmarked against.
// Generation is deterministic for a given Config.
package idset

import (
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/dbsmedya/lookupbench/internal/types"
)

// Config controls identifier generation.
type Config struct {
	Count  int
	Range  int64 // ids are drawn from [1, Range]
	Unique bool
	Seed   int64 // 0 picks a time-based seed
}

// Generator produces identifier sets from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator validates cfg and resolves a zero seed.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Count < 1 {
		return nil, fmt.Errorf("identifier count must be positive, got %d", cfg.Count)
	}
	if cfg.Range < 1 {
		return nil, fmt.Errorf("identifier range must be positive, got %d", cfg.Range)
	}
	if cfg.Unique && int64(cfg.Count) > cfg.Range {
		return nil, fmt.Errorf("cannot draw %d unique identifiers from range %d", cfg.Count, cfg.Range)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Generator{cfg: cfg, rng: mrand.New(mrand.NewSource(cfg.Seed))}, nil
}

// Seed returns the seed actually used, so a run can be reproduced.
func (g *Generator) Seed() int64 {
	return g.cfg.Seed
}

// Generate draws Count identifiers.
func (g *Generator) Generate() types.IdentifierSet {
	if !g.cfg.Unique {
		ids := make([]int64, g.cfg.Count)
		for i := range ids {
			ids[i] = g.draw()
		}
		return types.NewIdentifierSet(ids)
	}
	if int64(g.cfg.Count)*2 > g.cfg.Range {
		return types.NewIdentifierSet(g.dense())
	}
	return types.NewIdentifierSet(g.sparse())
}

func (g *Generator) draw() int64 {
	return g.rng.Int63n(g.cfg.Range) + 1
}

// sparse rejects duplicates; cheap while the range is much larger than Count.
func (g *Generator) sparse() []int64 {
	seen := make(map[int64]struct{}, g.cfg.Count)
	ids := make([]int64, 0, g.cfg.Count)
	for len(ids) < g.cfg.Count {
		id := g.draw()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// dense runs a partial Fisher-Yates over the whole range.
func (g *Generator) dense() []int64 {
	all := make([]int64, g.cfg.Range)
	for i := range all {
		all[i] = int64(i) + 1
	}
	for i := 0; i < g.cfg.Count; i++ {
		j := i + g.rng.Intn(len(all)-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:g.cfg.Count:g.cfg.Count]
}

// Generate is a convenience for NewGenerator(cfg) followed by Generate.
func Generate(cfg Config) (types.IdentifierSet, int64, error) {
	g, err := NewGenerator(cfg)
	if err != nil {
		return types.IdentifierSet{}, 0, err
	}
	return g.Generate(), g.Seed(), nil
}
