package app

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/fd1az/prediction-arb/internal/apperror"
)

// RetryConfig bounds per-leg retries of transient venue errors.
type RetryConfig struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// hintBackOff is a capped exponential backoff that honours a venue
// Retry-After hint when it is not longer than the cap.
type hintBackOff struct {
	exp  *backoff.ExponentialBackOff
	max  time.Duration
	hint time.Duration
}

func newHintBackOff(cfg RetryConfig) *hintBackOff {
	return &hintBackOff{
		exp: &backoff.ExponentialBackOff{
			InitialInterval:     cfg.BaseDelay,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         cfg.MaxDelay,
		},
		max: cfg.MaxDelay,
	}
}

func (b *hintBackOff) NextBackOff() time.Duration {
	next := b.exp.NextBackOff()
	if b.hint > 0 && b.hint <= b.max {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *hintBackOff) Reset() {
	b.exp.Reset()
	b.hint = 0
}

// retryTransient runs op until it succeeds, fails permanently or runs out
// of attempts. Only SERVICE_TIMEOUT and RATE_LIMIT_EXCEEDED are retried.
// Cancelling ctx stops pending retries and the last venue error is returned.
// The first attempt always runs.
func retryTransient[T any](ctx context.Context, cfg RetryConfig, op func(attempt int) (T, error), notify func(err error, wait time.Duration)) (T, int, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := newHintBackOff(cfg)
	attempts := 0
	var lastErr error

	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		res, err := op(attempts)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !apperror.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		if d, ok := apperror.RetryAfterHint(err); ok {
			bo.hint = d
		}
		return res, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if notify != nil {
				notify(err, wait)
			}
		}),
	)
	if err == nil {
		return res, attempts, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if lastErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = lastErr
	}
	return res, attempts, err
}
