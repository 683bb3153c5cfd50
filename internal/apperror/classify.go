package apperror

import (
	"errors"
	"time"
)

// IsTransient reports whether err is worth retrying: venue timeouts and rate limits.
// Rejections, balance problems and malformed responses are permanent.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case CodeServiceTimeout, CodeRateLimitExceeded:
		return true
	default:
		return false
	}
}

// RetryAfterHint returns the server supplied retry delay, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.RetryAfter > 0 {
		return appErr.RetryAfter, true
	}
	return 0, false
}
