package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueApp "github.com/fd1az/prediction-arb/business/venue/app"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

// mockLogger is a no-op logger for tests.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var (
	testNow    = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	testExpiry = time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC)
	testKey    = venueDomain.MatchKey{Underlying: "BTC", Expiry: testExpiry}
)

func fixedNow() time.Time { return testNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// quote builds a quote that is fresh at testNow.
func quote(t *testing.T, venue venueDomain.Venue, market, strike, yes, no string) venueDomain.Quote {
	t.Helper()
	q, err := venueDomain.NewQuote(venue, market, venueDomain.MarketTerms{
		Title:      "BTC above $" + strike,
		Underlying: "BTC",
		Strike:     dec(strike),
		Expiry:     testExpiry,
	}, dec(yes), dec(no), testNow)
	if err != nil {
		t.Fatalf("NewQuote() error = %v", err)
	}
	q.FreshUntil = testNow.Add(10 * time.Second)
	return q
}

// scenarioPair is venue A at 0.40/0.60 strike 95000 against venue B at
// 0.55/0.44 strike 95100.
func scenarioPair(t *testing.T) venueDomain.MatchedPair {
	t.Helper()
	a := quote(t, venueDomain.VenueLimitless, "lim-1", "95000", "0.40", "0.60")
	b := quote(t, venueDomain.VenuePolymarket, "poly-1", "95100", "0.55", "0.44").WithTokens("y1", "n1")
	return venueDomain.NewMatchedPair(testKey, a, b)
}

func testDetector() *Detector {
	return NewDetector(DetectorConfig{
		MinSpread: dec("0.03"),
		Slippage:  dec("0.005"),
		FeeRate:   decimal.Zero,
	}, fixedNow)
}

func testSizing() SizingConfig {
	return SizingConfig{
		MaxBet:        dec("10"),
		Slippage:      dec("0.005"),
		MaxLimitPrice: dec("0.99"),
	}
}

// fakeVenue is a scripted venue client.
type fakeVenue struct {
	venue venueDomain.Venue

	mu       sync.Mutex
	quotes   []venueDomain.Quote
	fetchErr error
	intents  []venueDomain.OrderIntent

	// place scripts PlaceOrder per attempt, counted from 1. Nil fills in full.
	place    func(attempt int, intent venueDomain.OrderIntent) (venueDomain.Fill, error)
	attempts atomic.Int32
}

func newFakeVenue(venue venueDomain.Venue) *fakeVenue {
	return &fakeVenue{venue: venue}
}

func (f *fakeVenue) Venue() venueDomain.Venue { return f.venue }

func (f *fakeVenue) FetchQuotes(_ context.Context, filter venueDomain.MarketFilter) ([]venueDomain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(filter.MarketIDs) == 0 {
		return append([]venueDomain.Quote(nil), f.quotes...), nil
	}
	var out []venueDomain.Quote
	for _, q := range f.quotes {
		for _, id := range filter.MarketIDs {
			if q.MarketID == id {
				out = append(out, q)
			}
		}
	}
	return out, nil
}

func (f *fakeVenue) PlaceOrder(_ context.Context, intent venueDomain.OrderIntent) (venueDomain.Fill, error) {
	n := int(f.attempts.Add(1))
	f.mu.Lock()
	f.intents = append(f.intents, intent)
	place := f.place
	f.mu.Unlock()

	if place != nil {
		return place(n, intent)
	}
	return fullFill(intent), nil
}

func (f *fakeVenue) setQuotes(quotes ...venueDomain.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes = quotes
}

func (f *fakeVenue) orders() []venueDomain.OrderIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]venueDomain.OrderIntent(nil), f.intents...)
}

func fullFill(intent venueDomain.OrderIntent) venueDomain.Fill {
	return venueDomain.Fill{
		OrderID:  "ord-" + intent.ClientOrderID,
		Shares:   intent.Shares,
		AvgPrice: intent.LimitPrice,
	}
}

// fakeGateway serves lookups from a fixed quote set.
type fakeGateway struct {
	mu      sync.Mutex
	quotes  map[venueDomain.QuoteKey]venueDomain.Quote
	clients map[venueDomain.Venue]*fakeVenue
	lookups atomic.Int32
}

func newFakeGateway(venues ...*fakeVenue) *fakeGateway {
	g := &fakeGateway{
		quotes:  make(map[venueDomain.QuoteKey]venueDomain.Quote),
		clients: make(map[venueDomain.Venue]*fakeVenue),
	}
	for _, v := range venues {
		g.clients[v.venue] = v
	}
	return g
}

func (g *fakeGateway) set(quotes ...venueDomain.Quote) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, q := range quotes {
		g.quotes[q.Key()] = q
	}
}

func (g *fakeGateway) Lookup(_ context.Context, venue venueDomain.Venue, marketID string) (venueDomain.Quote, bool, error) {
	g.lookups.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	q, ok := g.quotes[venueDomain.QuoteKey{Venue: venue, MarketID: marketID}]
	return q, ok, nil
}

func (g *fakeGateway) Client(venue venueDomain.Venue) (venueApp.VenueClient, bool) {
	c, ok := g.clients[venue]
	if !ok {
		return nil, false
	}
	return c, true
}

// recordingReporter keeps everything it is given.
type recordingReporter struct {
	mu       sync.Mutex
	started  int
	stopped  int
	opps     []domain.Opportunity
	trades   []domain.TradeResult
	lateLegs []domain.LateLeg
}

func (r *recordingReporter) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recordingReporter) ReportOpportunity(_ context.Context, opp domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opps = append(r.opps, opp)
}

func (r *recordingReporter) ReportTrade(_ context.Context, res domain.TradeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, res)
}

func (r *recordingReporter) ReportLateLeg(_ context.Context, late domain.LateLeg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lateLegs = append(r.lateLegs, late)
}

func (r *recordingReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return nil
}

func (r *recordingReporter) tradeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

func (r *recordingReporter) lateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lateLegs)
}

func newTestStats(t *testing.T) *Statistics {
	t.Helper()
	stats, err := NewStatistics(fixedNow)
	if err != nil {
		t.Fatalf("NewStatistics() error = %v", err)
	}
	return stats
}

type executorFixture struct {
	executor *Executor
	guard    *MemoryGuard
	reporter *recordingReporter
	stats    *Statistics
	gateway  *fakeGateway
	venueA   *fakeVenue
	venueB   *fakeVenue
}

func newExecutorFixture(t *testing.T, cfg ExecutorConfig) *executorFixture {
	t.Helper()
	f := &executorFixture{
		guard:    NewMemoryGuard(),
		reporter: &recordingReporter{},
		stats:    newTestStats(t),
		venueA:   newFakeVenue(venueDomain.VenueLimitless),
		venueB:   newFakeVenue(venueDomain.VenuePolymarket),
	}
	f.gateway = newFakeGateway(f.venueA, f.venueB)

	if cfg.Sizing.MaxBet.IsZero() {
		cfg.Sizing = testSizing()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	f.executor = NewExecutor(cfg, f.gateway, testDetector(), f.guard, f.reporter, f.stats, &mockLogger{})
	return f
}

// opportunity detects the scenario pair and seeds the gateway with its quotes.
func (f *executorFixture) opportunity(t *testing.T) domain.Opportunity {
	t.Helper()
	pair := scenarioPair(t)
	f.gateway.set(pair.A, pair.B)
	opp, ok := testDetector().Detect(pair)
	if !ok {
		t.Fatal("scenario pair not detected")
	}
	return opp
}
