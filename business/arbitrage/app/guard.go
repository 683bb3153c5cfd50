package app

import (
	"context"
	"sync"

	"github.com/fd1az/prediction-arb/internal/apperror"
)

var _ Guard = (*MemoryGuard)(nil)

// MemoryGuard is a process-local in-flight guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire marks key as held. It returns false if it already was.
func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return false, nil
	}
	g.held[key] = struct{}{}
	return true, nil
}

// Release frees key.
func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; !ok {
		return apperror.Invariant("release of guard key not held: " + key)
	}
	delete(g.held, key)
	return nil
}

// Held returns the number of held keys.
func (g *MemoryGuard) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
