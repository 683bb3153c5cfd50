package ratelimit

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNew_BurstIsTenPercent(t *testing.T) {
	l := New(600)

	allowed := 0
	for i := 0; i < 100; i++ {
		if l.limiter.Allow() {
			allowed++
		}
	}
	if allowed != 60 {
		t.Errorf("allowed = %d, want burst of 60", allowed)
	}
}

func TestNew_DisabledWhenNonPositive(t *testing.T) {
	l := New(0)
	for i := 0; i < 1000; i++ {
		if !l.limiter.Allow() {
			t.Fatalf("request %d was limited with limiting disabled", i)
		}
	}
}

func TestWait_RespectsContext(t *testing.T) {
	l := &Limiter{limiter: rate.NewLimiter(0.001, 1)}
	if !l.limiter.Allow() {
		t.Fatal("first token should be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() should fail when the next token is beyond the deadline")
	}
}
