package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns preset ids in order, then falls back to
// "<prefix>-<n>". It satisfies engine.IDGenerator.
//
// Tests use it to give signals readable ids and to make golden output
// byte-identical across runs.
type SequenceGenerator struct {
	mu     sync.Mutex
	ids    []string
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator that yields ids first.
func NewSequenceGenerator(ids ...string) *SequenceGenerator {
	return &SequenceGenerator{ids: ids, prefix: "sig"}
}

// WithPrefix sets the fallback prefix.
func (g *SequenceGenerator) WithPrefix(prefix string) *SequenceGenerator {
	g.prefix = prefix
	return g
}

// Push queues id to be returned after the already queued ids.
func (g *SequenceGenerator) Push(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ids = append(g.ids, id)
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
