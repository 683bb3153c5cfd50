package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apm"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/prediction-arb/business/arbitrage/app"

	defaultExecutionTimeout = 12 * time.Second
)

// ExecutorConfig holds execution settings.
type ExecutorConfig struct {
	Sizing SizingConfig
	Retry  RetryConfig
	// Timeout bounds the wait for both legs. Unresolved legs keep running.
	Timeout time.Duration
}

// Executor places both legs of an opportunity under the in-flight guard.
type Executor struct {
	config   ExecutorConfig
	venues   VenueGateway
	detector *Detector
	guard    Guard
	reporter Reporter
	stats    *Statistics
	log      logger.LoggerInterface
	tracer   apm.Tracer
	now      func() time.Time

	// late tracks leg goroutines and late-leg drains still running.
	late sync.WaitGroup
}

// NewExecutor creates an Executor.
func NewExecutor(
	cfg ExecutorConfig,
	venues VenueGateway,
	detector *Detector,
	guard Guard,
	reporter Reporter,
	stats *Statistics,
	log logger.LoggerInterface,
) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExecutionTimeout
	}
	return &Executor{
		config:   cfg,
		venues:   venues,
		detector: detector,
		guard:    guard,
		reporter: reporter,
		stats:    stats,
		log:      log,
		tracer:   apm.NewTracer(tracerName),
		now:      time.Now,
	}
}

// Execute re-validates and trades one opportunity. The returned error is
// reserved for invariant violations; every other outcome is in the result.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity) (res domain.TradeResult, err error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "arbitrage.execute",
		trace.WithAttributes(
			attribute.String("guard_key", opp.GuardKey()),
			attribute.String("market_a", opp.Pair.A.MarketID),
			attribute.String("market_b", opp.Pair.B.MarketID),
			attribute.String("cost", opp.Cost.String()),
		),
	)
	defer span.End()

	res = domain.TradeResult{
		ID:          uuid.NewString(),
		Opportunity: opp,
		StartedAt:   e.now(),
	}
	defer func() {
		res.FinishedAt = e.now()
		res.Latency = res.FinishedAt.Sub(res.StartedAt)
		span.SetAttributes(attribute.String("status", string(res.Status)))
		if res.Status == domain.TradeFailed || res.Status == domain.TradeExposed {
			span.NoticeError(res.Err)
		}
		e.stats.RecordTrade(ctx, res)
		e.reporter.ReportTrade(ctx, res)
	}()

	key := opp.GuardKey()
	acquired, gerr := e.guard.Acquire(ctx, key)
	if gerr != nil {
		res.Status = domain.TradeFailed
		res.Err = gerr
		e.log.Error(ctx, "guard acquire failed", "key", key, "error", gerr)
		return res, nil
	}
	if !acquired {
		res.Status = domain.TradeAlreadyInFlight
		res.Err = apperror.New(apperror.CodeAlreadyInFlight, apperror.WithContext(key))
		e.log.Debug(ctx, "opportunity already in flight", "key", key)
		return res, nil
	}

	defer func() {
		if r := recover(); r != nil {
			res.Status = domain.TradeFailed
			res.Err = apperror.New(apperror.CodeInternalError, apperror.WithContext(fmt.Sprintf("execute panic: %v", r)))
			e.log.Error(ctx, "execute panicked", "key", key, "panic", r)
		}
		if rerr := e.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
			if apperror.HasCode(rerr, apperror.CodeInvariantViolation) {
				err = rerr
			}
			e.log.Error(ctx, "guard release failed", "key", key, "error", rerr)
		}
	}()

	current, serr := e.revalidate(ctx, opp)
	if serr != nil {
		res.Status = domain.TradeStale
		res.Err = serr
		e.log.Info(ctx, "opportunity stale", "key", key, "reason", serr)
		return res, nil
	}
	res.Opportunity = current

	intentA, intentB, ierr := BuildIntents(current, e.config.Sizing)
	if ierr != nil {
		res.Status = domain.TradeFailed
		res.Err = ierr
		e.log.Warn(ctx, "cannot size trade", "key", key, "error", ierr)
		return res, nil
	}

	if cerr := context.Cause(ctx); cerr != nil {
		res.Status = domain.TradeFailed
		res.Err = apperror.New(apperror.CodeCancelled, apperror.WithCause(cerr))
		e.log.Info(ctx, "execution cancelled before dispatch", "key", key)
		return res, nil
	}

	e.log.Info(ctx, "executing",
		"trade_id", res.ID,
		"key", key,
		"direction", current.Direction,
		"cost", current.Cost.String(),
		"shares", intentA.Shares.String(),
		"limit_a", intentA.LimitPrice.String(),
		"limit_b", intentB.LimitPrice.String())

	res.LegA, res.LegB = e.submitBoth(ctx, res.ID, current, intentA, intentB)
	res.Status = domain.Classify(res.LegA, res.LegB)

	switch res.Status {
	case domain.TradeSuccess:
		res.RealizedProfit = domain.RealizedProfit(res.LegA.Fill, res.LegB.Fill)
		e.log.Info(ctx, "trade filled",
			"trade_id", res.ID, "key", key, "realized_profit", res.RealizedProfit.String())
	case domain.TradeNoOp:
		e.log.Info(ctx, "trade not filled", "trade_id", res.ID, "key", key,
			"leg_a", res.LegA.Status, "leg_b", res.LegB.Status)
	case domain.TradeExposed:
		filled, _ := res.FilledLeg()
		res.Err = res.LegB.Err
		if !res.LegA.Filled() {
			res.Err = res.LegA.Err
		}
		e.log.Error(ctx, "EXPOSED: one leg filled",
			"trade_id", res.ID,
			"key", key,
			"filled_venue", filled.Intent.Venue,
			"filled_shares", filled.Fill.Shares.String(),
			"leg_a", res.LegA.Status,
			"leg_a_error", res.LegA.Err,
			"leg_b", res.LegB.Status,
			"leg_b_error", res.LegB.Err)
	}

	return res, nil
}

// revalidate re-reads both markets and reprices the opportunity.
func (e *Executor) revalidate(ctx context.Context, opp domain.Opportunity) (domain.Opportunity, error) {
	var (
		g          errgroup.Group
		qa, qb     venueDomain.Quote
		okA, okB   bool
		errA, errB error
	)
	g.Go(func() error {
		qa, okA, errA = e.venues.Lookup(ctx, opp.Pair.A.Venue, opp.Pair.A.MarketID)
		return nil
	})
	g.Go(func() error {
		qb, okB, errB = e.venues.Lookup(ctx, opp.Pair.B.Venue, opp.Pair.B.MarketID)
		return nil
	})
	_ = g.Wait()

	switch {
	case errA != nil:
		return opp, apperror.New(apperror.CodeStaleOpportunity, apperror.WithContext("lookup venue A"), apperror.WithCause(errA))
	case errB != nil:
		return opp, apperror.New(apperror.CodeStaleOpportunity, apperror.WithContext("lookup venue B"), apperror.WithCause(errB))
	case !okA || !okB:
		return opp, apperror.New(apperror.CodeStaleOpportunity, apperror.WithContext("market no longer listed"))
	}

	current, ok := e.detector.Reprice(opp, qa, qb)
	if !ok {
		return opp, apperror.New(apperror.CodeStaleOpportunity,
			apperror.WithContext(fmt.Sprintf("cost now %s", qa.Ask(opp.LegA().Outcome).Add(qb.Ask(opp.LegB().Outcome)))))
	}
	return current, nil
}

type legDone struct {
	index int
	leg   domain.LegResult
}

// submitBoth runs both legs concurrently and waits up to the execution
// timeout. Legs still running at the deadline are marked timed out and
// reported when they resolve.
func (e *Executor) submitBoth(ctx context.Context, tradeID string, opp domain.Opportunity, a, b venueDomain.OrderIntent) (domain.LegResult, domain.LegResult) {
	intents := [2]venueDomain.OrderIntent{a, b}
	results := [2]domain.LegResult{}
	resolved := [2]bool{}

	done := make(chan legDone, len(intents))
	for i, intent := range intents {
		e.late.Add(1)
		go func() {
			defer e.late.Done()
			done <- legDone{index: i, leg: e.submitLeg(ctx, intent)}
		}()
	}

	timer := time.NewTimer(e.config.Timeout)
	defer timer.Stop()

	pending := len(intents)
wait:
	for pending > 0 {
		select {
		case d := <-done:
			results[d.index] = d.leg
			resolved[d.index] = true
			pending--
		case <-timer.C:
			break wait
		}
	}

	if pending > 0 {
		for i := range intents {
			if !resolved[i] {
				results[i] = domain.LegResult{
					Intent: intents[i],
					Status: domain.LegTimedOut,
					Err:    apperror.New(apperror.CodeLegTimeout, apperror.WithVenue(string(intents[i].Venue))),
				}
			}
		}
		e.drainLate(ctx, tradeID, opp, done, pending)
	}

	return results[0], results[1]
}

func (e *Executor) drainLate(ctx context.Context, tradeID string, opp domain.Opportunity, done <-chan legDone, pending int) {
	ctx = context.WithoutCancel(ctx)
	e.late.Add(1)
	go func() {
		defer e.late.Done()
		for ; pending > 0; pending-- {
			d := <-done
			late := domain.LateLeg{TradeID: tradeID, Opportunity: opp, Leg: d.leg}
			e.log.Warn(ctx, "late leg resolved",
				"trade_id", tradeID,
				"venue", d.leg.Intent.Venue,
				"status", d.leg.Status,
				"filled", d.leg.Fill.Shares.String(),
				"error", d.leg.Err)
			e.stats.RecordLateLeg(ctx, late)
			e.reporter.ReportLateLeg(ctx, late)
		}
	}()
}

// submitLeg places one order with transient-error retries. Orders go out on
// a context detached from cancellation so shutdown never aborts a request in
// flight; ctx only bounds the waits between attempts. A panic in the venue
// client fails the leg with INTERNAL_ERROR.
func (e *Executor) submitLeg(ctx context.Context, intent venueDomain.OrderIntent) domain.LegResult {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "arbitrage.leg",
		trace.WithAttributes(
			attribute.String("venue", string(intent.Venue)),
			attribute.String("market_id", intent.MarketID),
			attribute.String("outcome", string(intent.Outcome)),
		),
	)
	defer span.End()

	leg := domain.LegResult{Intent: intent}
	client, ok := e.venues.Client(intent.Venue)
	if !ok {
		leg.Status = domain.LegFailed
		leg.Err = apperror.Invariant("no client for venue " + string(intent.Venue))
		return leg
	}

	start := e.now()
	orderCtx := context.WithoutCancel(ctx)
	fill, attempts, err := retryTransient(ctx, e.config.Retry,
		func(int) (fill venueDomain.Fill, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = apperror.New(apperror.CodeInternalError,
						apperror.WithVenue(string(intent.Venue)),
						apperror.WithContext(fmt.Sprintf("place order panic: %v", r)))
				}
			}()
			return client.PlaceOrder(orderCtx, intent)
		},
		func(err error, wait time.Duration) {
			e.log.Warn(ctx, "leg attempt failed, retrying",
				"venue", intent.Venue,
				"market", intent.MarketID,
				"code", apperror.GetCode(err),
				"wait", wait)
		},
	)

	leg.Attempts = attempts
	leg.Latency = e.now().Sub(start)
	leg.Fill = fill
	leg.Err = err

	switch {
	case err != nil:
		leg.Status = domain.LegFailed
		span.NoticeError(err)
	case fill.IsFilled():
		leg.Status = domain.LegFilled
	default:
		leg.Status = domain.LegUnfilled
	}

	span.SetAttributes(
		attribute.String("status", string(leg.Status)),
		attribute.Int("attempts", attempts),
	)
	return leg
}

// Wait blocks until every leg and late-leg report has finished or ctx ends.
func (e *Executor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.late.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
