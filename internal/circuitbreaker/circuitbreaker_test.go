package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/prediction-arb/internal/apperror"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("venue-test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour

	var transitions []gobreaker.State
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := New[int](cfg)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want boom", i, err)
		}
	}

	if cb.Healthy() {
		t.Fatal("breaker should be open after 3 consecutive failures")
	}

	calls := 0
	_, err := cb.Execute(func() (int, error) {
		calls++
		return 1, nil
	})
	if calls != 0 {
		t.Errorf("open breaker let %d calls through", calls)
	}
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeCircuitOpen)
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("transitions = %v, want [open]", transitions)
	}
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cfg := DefaultConfig("venue-test")
	cfg.ConsecutiveFailures = 1
	cb := New[string](cfg)

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (string, error) { return "", context.Canceled })
	}

	if !cb.Healthy() {
		t.Error("context cancellation should not count as a failure")
	}
	if cb.Name() != "venue-test" {
		t.Errorf("Name() = %q, want %q", cb.Name(), "venue-test")
	}
}
