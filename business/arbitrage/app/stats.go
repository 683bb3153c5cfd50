package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
)

const meterName = "github.com/fd1az/prediction-arb/business/arbitrage/app"

type statsMetrics struct {
	cycles        metric.Int64Counter
	opportunities metric.Int64Counter
	trades        metric.Int64Counter
	lateLegs      metric.Int64Counter
	tradeLatency  metric.Float64Histogram
}

// Statistics counts cycles and trade outcomes. Counters are safe for
// concurrent use; realized profit sits behind a mutex.
type Statistics struct {
	startedAt time.Time
	now       func() time.Time

	cycles          atomic.Int64
	cyclesAborted   atomic.Int64
	opportunities   atomic.Int64
	executions      atomic.Int64
	successes       atomic.Int64
	noOps           atomic.Int64
	exposed         atomic.Int64
	alreadyInFlight atomic.Int64
	stale           atomic.Int64
	failed          atomic.Int64
	lateLegs        atomic.Int64

	mu     sync.Mutex
	profit decimal.Decimal

	metrics *statsMetrics
}

// NewStatistics creates a Statistics. now defaults to time.Now.
func NewStatistics(now func() time.Time) (*Statistics, error) {
	if now == nil {
		now = time.Now
	}
	s := &Statistics{startedAt: now(), now: now}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Statistics) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &statsMetrics{}

	s.metrics.cycles, err = meter.Int64Counter(
		"arb_cycles_total",
		metric.WithDescription("Scan cycles by result"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return err
	}

	s.metrics.opportunities, err = meter.Int64Counter(
		"arb_opportunities_total",
		metric.WithDescription("Admitted opportunities"),
		metric.WithUnit("{opportunity}"),
	)
	if err != nil {
		return err
	}

	s.metrics.trades, err = meter.Int64Counter(
		"arb_trades_total",
		metric.WithDescription("Execution results by status"),
		metric.WithUnit("{trade}"),
	)
	if err != nil {
		return err
	}

	s.metrics.lateLegs, err = meter.Int64Counter(
		"arb_late_legs_total",
		metric.WithDescription("Legs resolved after the execution timeout"),
		metric.WithUnit("{leg}"),
	)
	if err != nil {
		return err
	}

	s.metrics.tradeLatency, err = meter.Float64Histogram(
		"arb_trade_duration_seconds",
		metric.WithDescription("Execute latency for trades that submitted orders"),
		metric.WithUnit("s"),
	)
	return err
}

// RecordCycle counts a finished or aborted cycle.
func (s *Statistics) RecordCycle(ctx context.Context, aborted bool) {
	s.cycles.Add(1)
	result := "ok"
	if aborted {
		s.cyclesAborted.Add(1)
		result = "aborted"
	}
	s.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordOpportunities counts admitted opportunities.
func (s *Statistics) RecordOpportunities(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	s.opportunities.Add(int64(n))
	s.metrics.opportunities.Add(ctx, int64(n))
}

// RecordTrade counts one Execute result.
func (s *Statistics) RecordTrade(ctx context.Context, res domain.TradeResult) {
	switch res.Status {
	case domain.TradeSuccess:
		s.successes.Add(1)
		s.mu.Lock()
		s.profit = s.profit.Add(res.RealizedProfit)
		s.mu.Unlock()
	case domain.TradeNoOp:
		s.noOps.Add(1)
	case domain.TradeExposed:
		s.exposed.Add(1)
	case domain.TradeAlreadyInFlight:
		s.alreadyInFlight.Add(1)
	case domain.TradeStale:
		s.stale.Add(1)
	case domain.TradeFailed:
		s.failed.Add(1)
	}

	attrs := metric.WithAttributes(attribute.String("status", string(res.Status)))
	s.metrics.trades.Add(ctx, 1, attrs)
	if res.Status.Executed() {
		s.executions.Add(1)
		s.metrics.tradeLatency.Record(ctx, res.Latency.Seconds(), attrs)
	}
}

// RecordLateLeg counts a leg that resolved after its trade was classified.
func (s *Statistics) RecordLateLeg(ctx context.Context, late domain.LateLeg) {
	s.lateLegs.Add(1)
	s.metrics.lateLegs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", string(late.Leg.Intent.Venue)),
		attribute.String("status", string(late.Leg.Status)),
	))
}

// Exposed returns the number of exposed trades.
func (s *Statistics) Exposed() int64 {
	return s.exposed.Load()
}

// Snapshot returns a copy of all counters.
func (s *Statistics) Snapshot() domain.StatsSnapshot {
	s.mu.Lock()
	profit := s.profit
	s.mu.Unlock()

	return domain.StatsSnapshot{
		StartedAt:       s.startedAt,
		Uptime:          s.now().Sub(s.startedAt),
		Cycles:          s.cycles.Load(),
		CyclesAborted:   s.cyclesAborted.Load(),
		Opportunities:   s.opportunities.Load(),
		Executions:      s.executions.Load(),
		Successes:       s.successes.Load(),
		NoOps:           s.noOps.Load(),
		Exposed:         s.exposed.Load(),
		AlreadyInFlight: s.alreadyInFlight.Load(),
		Stale:           s.stale.Load(),
		Failed:          s.failed.Load(),
		LateLegs:        s.lateLegs.Load(),
		RealizedProfit:  profit,
	}
}
