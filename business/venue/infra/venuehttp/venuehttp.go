// Package venuehttp holds the HTTP plumbing shared by venue adapters:
// client construction and classification of venue failures into apperror codes.
package venuehttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/httpclient"
)

// Kind selects how 4xx responses are classified.
type Kind int

const (
	// KindQuote classifies unexpected 4xx as INVALID_RESPONSE.
	KindQuote Kind = iota
	// KindOrder classifies unexpected 4xx as ORDER_REJECTED.
	KindOrder
)

// NewClient builds the instrumented HTTP client for a venue. The API key,
// when set, is sent as a static header.
func NewClient(venue domain.Venue, cfg config.VenueConfig, apiKeyHeader string, opts ...httpclient.ClientOption) (*httpclient.InstrumentedClient, error) {
	headers := map[string]string{
		"Accept": "application/json",
	}
	if cfg.APIKey != "" && apiKeyHeader != "" {
		headers[apiKeyHeader] = cfg.APIKey
	}

	base := []httpclient.ClientOption{
		httpclient.WithProviderName(string(venue)),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithHeaders(headers),
		httpclient.WithMaxConnsPerHost(cfg.MaxConcurrentRequests),
		httpclient.WithTracer(otel.Tracer("github.com/fd1az/prediction-arb/business/venue/infra/" + string(venue))),
	}
	if cfg.RequestTimeout > 0 {
		base = append(base, httpclient.WithRequestTimeout(cfg.RequestTimeout))
	}

	client, err := httpclient.NewInstrumentedClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create %s http client: %w", venue, err)
	}
	return client, nil
}

// ResponseHandler classifies non-2xx venue responses.
func ResponseHandler(venue domain.Venue, kind Kind) httpclient.ResponseErrorHandler {
	return func(resp *httpclient.Response) error {
		if resp.StatusCode < 300 {
			return nil
		}
		retryAfter, _ := resp.RetryAfter()
		return classifyStatus(venue, kind, resp.StatusCode, resp.Body(), retryAfter)
	}
}

func classifyStatus(venue domain.Venue, kind Kind, status int, body []byte, retryAfter time.Duration) error {
	msg := ErrorMessage(body)
	opts := []apperror.Option{
		apperror.WithVenue(string(venue)),
		apperror.WithStatusCode(status),
		apperror.WithContext(fmt.Sprintf("HTTP %d: %s", status, msg)),
	}

	switch {
	case status == http.StatusTooManyRequests:
		if retryAfter > 0 {
			opts = append(opts, apperror.WithRetryAfter(retryAfter))
		}
		return apperror.New(apperror.CodeRateLimitExceeded, opts...)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return apperror.New(apperror.CodeServiceTimeout, opts...)
	case status >= 500:
		return apperror.New(apperror.CodeVenueUnavailable, opts...)
	case IsBalanceMessage(msg):
		return apperror.New(apperror.CodeInsufficientBalance, opts...)
	case kind == KindOrder:
		return apperror.New(apperror.CodeOrderRejected, opts...)
	default:
		return apperror.New(apperror.CodeInvalidResponse, opts...)
	}
}

// IsBalanceMessage reports whether a venue message is about missing funds.
func IsBalanceMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "insufficient") || strings.Contains(lower, "balance")
}

// ErrorMessage extracts a human readable message from a venue error body.
func ErrorMessage(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"errorMsg", "error", "message", "msg", "detail"} {
			if s, ok := fields[key].(string); ok && s != "" {
				return s
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// ClassifyError converts a request error into an apperror. Errors that are
// already classified pass through unchanged.
func ClassifyError(venue domain.Venue, op string, err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	opts := []apperror.Option{
		apperror.WithVenue(string(venue)),
		apperror.WithContext(op),
		apperror.WithCause(err),
	}

	var netErr net.Error
	switch {
	case errors.Is(err, httpclient.ErrDecode):
		return apperror.New(apperror.CodeInvalidResponse, opts...)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return apperror.New(apperror.CodeServiceTimeout, opts...)
	default:
		return apperror.New(apperror.CodeVenueUnavailable, opts...)
	}
}

// ParseAmount parses a decimal string from a venue response. Empty or
// malformed values read as zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
