package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// AppError implements the error interface and provides structured error handling
type AppError struct {
	Code       Code          `json:"code"`
	Message    string        `json:"message"`
	StatusCode int           `json:"statusCode,omitempty"`
	Context    string        `json:"context,omitempty"`
	Venue      string        `json:"venue,omitempty"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	cause      error
	stack      []uintptr
}

// Error implements the error interface
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Venue != "" {
		sb.WriteString(" [venue=" + e.Venue + "]")
	}
	if e.Context != "" {
		sb.WriteString(" (" + e.Context + ")")
	}
	if e.cause != nil {
		sb.WriteString(": " + e.cause.Error())
	}
	return sb.String()
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ToLog flattens the error into key/value pairs for structured logging.
func (e *AppError) ToLog() []any {
	kv := []any{"error_code", string(e.Code), "error", e.Message}
	if e.Venue != "" {
		kv = append(kv, "venue", e.Venue)
	}
	if e.Context != "" {
		kv = append(kv, "error_context", e.Context)
	}
	if e.cause != nil {
		kv = append(kv, "cause", e.cause.Error())
	}
	if len(e.stack) > 0 && e.Code == CodeInvariantViolation {
		kv = append(kv, "stack", e.formatStack())
	}
	return kv
}

func (e *AppError) formatStack() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// New creates a new AppError with the given code and options
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:       code,
		Message:    messages[code],
		StatusCode: defaultStatusCode(code),
		Timestamp:  time.Now(),
		stack:      captureStack(),
	}

	for _, opt := range opts {
		opt(err)
	}

	if err.Message == "" {
		err.Message = string(code)
	}

	return err
}

// Option is a functional option for AppError
type Option func(*AppError)

// WithMessage sets a custom message
func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext adds context information
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

// WithStatusCode records the upstream HTTP status.
func WithStatusCode(statusCode int) Option {
	return func(e *AppError) {
		e.StatusCode = statusCode
	}
}

// WithCause wraps an underlying error
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// WithVenue tags the error with the venue that produced it.
func WithVenue(venue string) Option {
	return func(e *AppError) {
		e.Venue = venue
	}
}

// WithRetryAfter records a server supplied retry hint.
func WithRetryAfter(d time.Duration) Option {
	return func(e *AppError) {
		e.RetryAfter = d
	}
}

// Internal creates an internal error
func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause))
}

// Validation creates a validation error
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithStatusCode(http.StatusBadRequest))
}

// Invariant reports a programming defect.
func Invariant(context string) *AppError {
	return New(CodeInvariantViolation, WithContext(context))
}

// Wrap wraps a standard error into AppError
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}

	return Internal(code, context, err)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

func defaultStatusCode(code Code) int {
	switch code {
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeServiceTimeout:
		return http.StatusGatewayTimeout
	case CodeVenueUnavailable, CodeCircuitOpen:
		return http.StatusServiceUnavailable
	case CodeNotFound:
		return http.StatusNotFound
	}

	if strings.Contains(string(code), "INVALID") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
