package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out compile request ids "<prefix>-0001",
// "<prefix>-0002", ... so journal output is stable across runs.
//
// It satisfies driver.RequestIDGenerator and is safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs returns a generator with the given prefix ("req" if empty).
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
