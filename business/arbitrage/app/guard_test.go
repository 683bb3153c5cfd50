package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fd1az/prediction-arb/internal/apperror"
)

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	ok, err := g.Acquire(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := g.Acquire(ctx, "k"); ok {
		t.Error("second Acquire() succeeded while held")
	}
	if ok, _ := g.Acquire(ctx, "other"); !ok {
		t.Error("Acquire() of a different key failed")
	}

	if err := g.Release(ctx, "k"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := g.Acquire(ctx, "k"); !ok {
		t.Error("Acquire() after release failed")
	}
}

func TestMemoryGuard_ReleaseNotHeld(t *testing.T) {
	err := NewMemoryGuard().Release(context.Background(), "missing")
	if !apperror.HasCode(err, apperror.CodeInvariantViolation) {
		t.Errorf("Release() error = %v, want INVARIANT_VIOLATION", err)
	}
}

func TestMemoryGuard_ConcurrentAcquire(t *testing.T) {
	g := NewMemoryGuard()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Acquire(context.Background(), "k"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d goroutines acquired the key, want 1", wins.Load())
	}
	if g.Held() != 1 {
		t.Errorf("Held() = %d, want 1", g.Held())
	}
}
