package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// fakeVenue serves canned quotes and records filters.
type fakeVenue struct {
	venue domain.Venue

	mu      sync.Mutex
	quotes  []domain.Quote
	err     error
	filters []domain.MarketFilter
}

func (f *fakeVenue) Venue() domain.Venue { return f.venue }

func (f *fakeVenue) FetchQuotes(_ context.Context, filter domain.MarketFilter) ([]domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	if len(filter.MarketIDs) == 0 {
		return append([]domain.Quote(nil), f.quotes...), nil
	}
	var out []domain.Quote
	for _, q := range f.quotes {
		for _, id := range filter.MarketIDs {
			if q.MarketID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (f *fakeVenue) PlaceOrder(context.Context, domain.OrderIntent) (domain.Fill, error) {
	return domain.Fill{}, nil
}

func (f *fakeVenue) set(quotes []domain.Quote, err error) {
	f.mu.Lock()
	f.quotes, f.err = quotes, err
	f.mu.Unlock()
}

func (f *fakeVenue) calls() []domain.MarketFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MarketFilter(nil), f.filters...)
}

var testExpiry = time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC)

func quote(t *testing.T, venue domain.Venue, market, strike, yes, no string, observed time.Time) domain.Quote {
	t.Helper()
	q, err := domain.NewQuote(venue, market, domain.MarketTerms{
		Title:      "BTC above $" + strike,
		Underlying: "BTC",
		Strike:     decimal.RequireFromString(strike),
		Expiry:     testExpiry,
	}, decimal.RequireFromString(yes), decimal.RequireFromString(no), observed)
	if err != nil {
		t.Fatalf("NewQuote() error = %v", err)
	}
	return q
}
