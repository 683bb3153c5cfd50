package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
)

func TestExecutor_Success(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	opp := f.opportunity(t)

	res, err := f.executor.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if res.Status != domain.TradeSuccess {
		t.Fatalf("Status = %s, want %s (err %v)", res.Status, domain.TradeSuccess, res.Err)
	}
	// 22.47 pairs cost 22.47 * (0.405 + 0.445) = 19.0995
	if !res.RealizedProfit.Equal(dec("3.3705")) {
		t.Errorf("RealizedProfit = %s, want 3.3705", res.RealizedProfit)
	}
	if res.LegA.Attempts != 1 || res.LegB.Attempts != 1 {
		t.Errorf("attempts = %d/%d, want 1/1", res.LegA.Attempts, res.LegB.Attempts)
	}
	if f.guard.Held() != 0 {
		t.Errorf("guard holds %d keys after Execute, want 0", f.guard.Held())
	}
	if f.reporter.tradeCount() != 1 {
		t.Errorf("reported %d trades, want 1", f.reporter.tradeCount())
	}

	snap := f.stats.Snapshot()
	if snap.Successes != 1 || snap.Executions != 1 {
		t.Errorf("stats successes/executions = %d/%d, want 1/1", snap.Successes, snap.Executions)
	}
}

func TestExecutor_ExposedWhenLegBRejected(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.venueB.place = func(int, venueDomain.OrderIntent) (venueDomain.Fill, error) {
		return venueDomain.Fill{}, apperror.New(apperror.CodeOrderRejected, apperror.WithVenue("polymarket"))
	}
	opp := f.opportunity(t)
	before := f.stats.Exposed()

	res, err := f.executor.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if res.Status != domain.TradeExposed {
		t.Fatalf("Status = %s, want %s", res.Status, domain.TradeExposed)
	}
	if got := f.stats.Exposed(); got != before+1 {
		t.Errorf("exposed counter = %d, want %d", got, before+1)
	}
	if n := f.venueB.attempts.Load(); n != 1 {
		t.Errorf("leg B attempted %d times, want 1", n)
	}
	if res.LegA.Status != domain.LegFilled {
		t.Errorf("leg A status = %s, want filled", res.LegA.Status)
	}
	if !apperror.HasCode(res.Err, apperror.CodeOrderRejected) {
		t.Errorf("Err = %v, want ORDER_REJECTED", res.Err)
	}
	if !res.RealizedProfit.IsZero() {
		t.Errorf("RealizedProfit = %s, want 0", res.RealizedProfit)
	}
	if f.guard.Held() != 0 {
		t.Error("guard not released after exposed trade")
	}
}

func TestExecutor_NoOpWhenNeitherFills(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	unfilled := func(int, venueDomain.OrderIntent) (venueDomain.Fill, error) {
		return venueDomain.Fill{OrderID: "killed"}, nil
	}
	f.venueA.place = unfilled
	f.venueB.place = unfilled

	res, _ := f.executor.Execute(context.Background(), f.opportunity(t))
	if res.Status != domain.TradeNoOp {
		t.Errorf("Status = %s, want %s", res.Status, domain.TradeNoOp)
	}
	if res.LegA.Status != domain.LegUnfilled || res.LegB.Status != domain.LegUnfilled {
		t.Errorf("leg statuses = %s/%s, want unfilled", res.LegA.Status, res.LegB.Status)
	}
	if f.stats.Exposed() != 0 {
		t.Error("no-op counted as exposed")
	}
}

func TestExecutor_RetriesRateLimitedLegs(t *testing.T) {
	base := 20 * time.Millisecond
	f := newExecutorFixture(t, ExecutorConfig{
		Retry: RetryConfig{MaxAttempts: 3, BaseDelay: base, MaxDelay: time.Second},
	})
	rateLimitedTwice := func(attempt int, intent venueDomain.OrderIntent) (venueDomain.Fill, error) {
		if attempt <= 2 {
			return venueDomain.Fill{}, apperror.New(apperror.CodeRateLimitExceeded)
		}
		return fullFill(intent), nil
	}
	f.venueA.place = rateLimitedTwice
	f.venueB.place = rateLimitedTwice

	res, err := f.executor.Execute(context.Background(), f.opportunity(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if res.Status != domain.TradeSuccess {
		t.Fatalf("Status = %s, want %s (err %v)", res.Status, domain.TradeSuccess, res.Err)
	}
	if res.LegA.Attempts != 3 || res.LegB.Attempts != 3 {
		t.Errorf("attempts = %d/%d, want 3/3", res.LegA.Attempts, res.LegB.Attempts)
	}
	if floor := base + 2*base; res.Latency < floor {
		t.Errorf("Latency = %v, want at least %v", res.Latency, floor)
	}

	orders := f.venueA.orders()
	for _, o := range orders[1:] {
		if o.ClientOrderID != orders[0].ClientOrderID {
			t.Error("retry used a new client order id")
		}
	}
}

func TestExecutor_ConcurrentDuplicate(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	release := make(chan struct{})
	f.venueA.place = func(_ int, intent venueDomain.OrderIntent) (venueDomain.Fill, error) {
		<-release
		return fullFill(intent), nil
	}
	opp := f.opportunity(t)

	results := make([]domain.TradeResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.executor.Execute(context.Background(), opp)
		}()
	}

	// The duplicate returns without blocking on the venue.
	deadline := time.After(2 * time.Second)
	for f.reporter.tradeCount() == 0 {
		select {
		case <-deadline:
			close(release)
			t.Fatal("no Execute call returned while the first was in flight")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	wg.Wait()

	counts := map[domain.TradeStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	if counts[domain.TradeAlreadyInFlight] != 1 || counts[domain.TradeSuccess] != 1 {
		t.Errorf("statuses = %v, want one success and one already_in_flight", counts)
	}
	if n := f.venueB.attempts.Load(); n != 1 {
		t.Errorf("venue B received %d orders, want 1", n)
	}
	if f.guard.Held() != 0 {
		t.Error("guard not released")
	}
}

func TestExecutor_Stale(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *executorFixture)
	}{
		{
			name: "spread_gone",
			setup: func(t *testing.T, f *executorFixture) {
				f.gateway.set(quote(t, venueDomain.VenueLimitless, "lim-1", "95000", "0.56", "0.60"))
			},
		},
		{
			name: "quote_expired",
			setup: func(t *testing.T, f *executorFixture) {
				q := quote(t, venueDomain.VenueLimitless, "lim-1", "95000", "0.40", "0.60")
				q.FreshUntil = testNow.Add(-time.Second)
				f.gateway.set(q)
			},
		},
		{
			name: "market_delisted",
			setup: func(t *testing.T, f *executorFixture) {
				f.gateway.mu.Lock()
				delete(f.gateway.quotes, venueDomain.QuoteKey{Venue: venueDomain.VenuePolymarket, MarketID: "poly-1"})
				f.gateway.mu.Unlock()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t, ExecutorConfig{})
			opp := f.opportunity(t)
			tt.setup(t, f)

			res, err := f.executor.Execute(context.Background(), opp)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Status != domain.TradeStale {
				t.Errorf("Status = %s, want %s", res.Status, domain.TradeStale)
			}
			if !apperror.HasCode(res.Err, apperror.CodeStaleOpportunity) {
				t.Errorf("Err = %v, want STALE_OPPORTUNITY", res.Err)
			}
			if f.venueA.attempts.Load()+f.venueB.attempts.Load() != 0 {
				t.Error("orders were submitted for a stale opportunity")
			}
			if f.guard.Held() != 0 {
				t.Error("guard not released")
			}
		})
	}
}

func TestExecutor_LegTimeoutReportsLateLeg(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	f.venueB.place = func(_ int, intent venueDomain.OrderIntent) (venueDomain.Fill, error) {
		<-release
		return fullFill(intent), nil
	}

	res, err := f.executor.Execute(context.Background(), f.opportunity(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != domain.TradeExposed {
		t.Fatalf("Status = %s, want %s", res.Status, domain.TradeExposed)
	}
	if res.LegB.Status != domain.LegTimedOut {
		t.Errorf("leg B status = %s, want timed_out", res.LegB.Status)
	}
	if !apperror.HasCode(res.Err, apperror.CodeLegTimeout) {
		t.Errorf("Err = %v, want LEG_TIMEOUT", res.Err)
	}
	if f.guard.Held() != 0 {
		t.Error("guard held after timeout")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.executor.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if f.reporter.lateCount() != 1 {
		t.Fatalf("late legs reported = %d, want 1", f.reporter.lateCount())
	}
	late := f.reporter.lateLegs[0]
	if late.TradeID != res.ID || late.Leg.Status != domain.LegFilled {
		t.Errorf("late leg = %s %s, want %s filled", late.TradeID, late.Leg.Status, res.ID)
	}
	if f.stats.Snapshot().LateLegs != 1 {
		t.Errorf("LateLegs = %d, want 1", f.stats.Snapshot().LateLegs)
	}
}

type failingGuard struct{ *MemoryGuard }

func (g *failingGuard) Release(context.Context, string) error {
	return apperror.Invariant("release of guard key not held")
}

func TestExecutor_ReleaseInvariantSurfaces(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.executor.guard = &failingGuard{MemoryGuard: NewMemoryGuard()}

	_, err := f.executor.Execute(context.Background(), f.opportunity(t))
	if !apperror.HasCode(err, apperror.CodeInvariantViolation) {
		t.Errorf("Execute() error = %v, want INVARIANT_VIOLATION", err)
	}
}

func TestExecutor_UnknownVenueFailsLeg(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	delete(f.gateway.clients, venueDomain.VenuePolymarket)

	res, _ := f.executor.Execute(context.Background(), f.opportunity(t))
	if res.LegB.Status != domain.LegFailed {
		t.Errorf("leg B status = %s, want failed", res.LegB.Status)
	}
	if res.Status != domain.TradeExposed {
		t.Errorf("Status = %s, want %s", res.Status, domain.TradeExposed)
	}
}

func TestExecutor_PanickingVenueFailsLeg(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	f.venueB.place = func(int, venueDomain.OrderIntent) (venueDomain.Fill, error) {
		panic("venue client bug")
	}

	res, err := f.executor.Execute(context.Background(), f.opportunity(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != domain.TradeExposed {
		t.Fatalf("Status = %s, want %s", res.Status, domain.TradeExposed)
	}
	if res.LegB.Status != domain.LegFailed {
		t.Errorf("leg B status = %s, want failed", res.LegB.Status)
	}
	if !apperror.HasCode(res.LegB.Err, apperror.CodeInternalError) {
		t.Errorf("leg B error = %v, want INTERNAL_ERROR", res.LegB.Err)
	}
	if n := f.venueB.attempts.Load(); n != 1 {
		t.Errorf("leg B attempted %d times, want 1", n)
	}
	if f.guard.Held() != 0 {
		t.Error("guard not released after venue panic")
	}
}

func TestExecutor_CancelledBeforeDispatch(t *testing.T) {
	f := newExecutorFixture(t, ExecutorConfig{})
	opp := f.opportunity(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.executor.Execute(ctx, opp)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Status != domain.TradeFailed {
		t.Errorf("Status = %s, want %s", res.Status, domain.TradeFailed)
	}
	if !apperror.HasCode(res.Err, apperror.CodeCancelled) {
		t.Errorf("Err = %v, want CANCELLED", res.Err)
	}
	if n := f.venueA.attempts.Load() + f.venueB.attempts.Load(); n != 0 {
		t.Errorf("%d orders sent after cancellation, want 0", n)
	}
	if f.guard.Held() != 0 {
		t.Error("guard not released")
	}
}
