package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "timeout", err: New(CodeServiceTimeout), want: true},
		{name: "rate_limited", err: New(CodeRateLimitExceeded), want: true},
		{name: "wrapped_rate_limit", err: fmt.Errorf("leg a: %w", New(CodeRateLimitExceeded)), want: true},
		{name: "rejected", err: New(CodeOrderRejected), want: false},
		{name: "insufficient_balance", err: New(CodeInsufficientBalance), want: false},
		{name: "network", err: New(CodeVenueUnavailable), want: false},
		{name: "plain_error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_IsComparesCode(t *testing.T) {
	err := fmt.Errorf("submit: %w", New(CodeOrderRejected, WithVenue("polymarket")))

	if !errors.Is(err, New(CodeOrderRejected)) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, New(CodeInsufficientBalance)) {
		t.Error("errors.Is matched a different code")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	cause := errors.New("connection reset")
	err := New(CodeVenueUnavailable, WithVenue("limitless"), WithContext("GET /markets"), WithCause(cause))

	msg := err.Error()
	for _, want := range []string{"VENUE_UNAVAILABLE", "venue=limitless", "GET /markets", "connection reset"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := New(CodeRateLimitExceeded, WithRetryAfter(2*time.Second))

	d, ok := RetryAfterHint(fmt.Errorf("wrapped: %w", err))
	if !ok || d != 2*time.Second {
		t.Errorf("RetryAfterHint() = %v, %v, want 2s, true", d, ok)
	}

	if _, ok := RetryAfterHint(New(CodeRateLimitExceeded)); ok {
		t.Error("RetryAfterHint() reported a hint for an error without one")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	orig := New(CodeInvalidResponse)
	wrapped := Wrap(orig, CodeInternalError, "decode book")
	if wrapped != orig {
		t.Error("Wrap should return an existing AppError unchanged")
	}
	if wrapped.Context != "decode book" {
		t.Errorf("Context = %q, want %q", wrapped.Context, "decode book")
	}

	plain := Wrap(errors.New("eof"), CodeInvalidResponse, "decode")
	if plain.Code != CodeInvalidResponse {
		t.Errorf("Code = %s, want %s", plain.Code, CodeInvalidResponse)
	}
}
