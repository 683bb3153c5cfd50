package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apm"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateMatching
	StateDetecting
	StateExecuting
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateMatching:
		return "matching"
	case StateDetecting:
		return "detecting"
	case StateExecuting:
		return "executing"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SchedulerConfig holds scan loop settings.
type SchedulerConfig struct {
	PollInterval time.Duration
	// MaxExecutionsPerCycle caps how many ranked opportunities are executed
	// per cycle. Zero executes none.
	MaxExecutionsPerCycle int
	// ShutdownTimeout bounds the wait for in-flight legs on Stop.
	ShutdownTimeout time.Duration
}

// CycleReport summarizes one scan cycle.
type CycleReport struct {
	Cycle         int64
	StartedAt     time.Time
	Duration      time.Duration
	QuotesA       int
	QuotesB       int
	Swept         int
	Pairs         int
	Opportunities int
	Trades        []domain.TradeResult
	VenueErrors   map[venueDomain.Venue]error
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSummaryWriter sets where the final statistics are printed on Stop.
func WithSummaryWriter(w io.Writer) SchedulerOption {
	return func(s *Scheduler) {
		s.summary = w
	}
}

// Scheduler drives the refresh, match, detect and execute cycle.
type Scheduler struct {
	config   SchedulerConfig
	quotes   QuoteRefresher
	matcher  PairMatcher
	detector *Detector
	executor *Executor
	reporter Reporter
	stats    *Statistics
	log      logger.LoggerInterface
	tracer   apm.Tracer
	summary  io.Writer

	state atomic.Int32
	cycle atomic.Int64

	// cycleMu serializes cycles between Run and direct RunCycle callers.
	cycleMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool
}

// NewScheduler creates a Scheduler in the Idle state.
func NewScheduler(
	cfg SchedulerConfig,
	quotes QuoteRefresher,
	matcher PairMatcher,
	detector *Detector,
	executor *Executor,
	reporter Reporter,
	stats *Statistics,
	log logger.LoggerInterface,
	opts ...SchedulerOption,
) *Scheduler {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Scheduler{
		config:   cfg,
		quotes:   quotes,
		matcher:  matcher,
		detector: detector,
		executor: executor,
		reporter: reporter,
		stats:    stats,
		log:      log,
		tracer:   apm.NewTracer(tracerName),
		summary:  os.Stdout,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of runtime statistics.
func (s *Scheduler) Stats() domain.StatsSnapshot {
	return s.stats.Snapshot()
}

// Done is closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Start starts the reporter and runs the scan loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return apperror.Invariant("scheduler started twice")
	}

	s.log.Info(ctx, "starting scan scheduler",
		"poll_interval", s.config.PollInterval,
		"max_executions", s.config.MaxExecutionsPerCycle)

	if err := s.reporter.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := s.Run(ctx); err != nil {
			s.log.Error(ctx, "scan loop ended", "error", err)
		}
		s.Stop()
	}()
	return nil
}

// RunOnce starts the reporter, runs a single cycle and stops.
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, error) {
	if !s.started.CompareAndSwap(false, true) {
		return CycleReport{}, apperror.Invariant("scheduler started twice")
	}
	if err := s.reporter.Start(ctx); err != nil {
		return CycleReport{}, err
	}
	report, err := s.RunCycle(ctx)
	s.Stop()
	return report, err
}

// Run executes cycles until ctx ends or Stop is called. Venue failures never
// end the loop; an invariant violation does and is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "scheduler stopping", "reason", ctx.Err())
			return nil
		case <-s.stopCh:
			return nil
		default:
		}

		report, err := s.RunCycle(ctx)
		if err != nil {
			if apperror.HasCode(err, apperror.CodeInvariantViolation) {
				return err
			}
			s.log.Warn(ctx, "cycle failed", "cycle", report.Cycle, "error", err)
		}

		wait := time.NewTimer(s.config.PollInterval)
		select {
		case <-ctx.Done():
			wait.Stop()
			s.log.Info(ctx, "scheduler stopping", "reason", ctx.Err())
			return nil
		case <-s.stopCh:
			wait.Stop()
			return nil
		case <-wait.C:
		}
	}
}

// RunCycle runs one full cycle. Dispatched executions always finish before
// it returns, even when Stop is called mid-cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (report CycleReport, err error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	report = CycleReport{
		Cycle:     s.cycle.Add(1),
		StartedAt: time.Now(),
	}
	ctx, span := s.tracer.StartSpanFromContext(ctx, "arbitrage.cycle",
		trace.WithAttributes(attribute.Int64("cycle", report.Cycle)))
	defer span.End()

	aborted := true
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		span.NoticeError(err)
		s.stats.RecordCycle(ctx, aborted)
		s.setState(StateIdle)
	}()

	s.setState(StateScanning)
	snap := s.quotes.Refresh(ctx)
	report.QuotesA, report.QuotesB = len(snap.A), len(snap.B)
	report.VenueErrors = snap.Errors
	report.Swept = s.quotes.Sweep()

	s.setState(StateMatching)
	pairs := s.matcher.Match(snap.A, snap.B)
	report.Pairs = len(pairs)

	s.setState(StateDetecting)
	opps := s.detector.DetectAll(pairs)
	report.Opportunities = len(opps)
	s.stats.RecordOpportunities(ctx, len(opps))
	for _, opp := range opps {
		s.reporter.ReportOpportunity(ctx, opp)
	}

	s.log.Debug(ctx, "cycle scanned",
		"cycle", report.Cycle,
		"quotes_a", report.QuotesA,
		"quotes_b", report.QuotesB,
		"swept", report.Swept,
		"pairs", report.Pairs,
		"opportunities", report.Opportunities,
		"venue_errors", len(snap.Errors))

	if s.stopping() || ctx.Err() != nil {
		return report, nil
	}

	n := min(len(opps), s.config.MaxExecutionsPerCycle)
	if n > 0 {
		s.setState(StateExecuting)
		report.Trades, err = s.execute(ctx, opps[:n])
		if err != nil {
			return report, err
		}
	}

	aborted = false
	span.SetAttributes(
		attribute.Int("pairs", report.Pairs),
		attribute.Int("opportunities", report.Opportunities),
		attribute.Int("trades", len(report.Trades)),
	)
	return report, snap.Err()
}

// execute runs the selected opportunities concurrently. Results keep the
// ranked order.
func (s *Scheduler) execute(ctx context.Context, opps []domain.Opportunity) ([]domain.TradeResult, error) {
	results := make([]domain.TradeResult, len(opps))
	var g errgroup.Group
	for i, opp := range opps {
		g.Go(func() error {
			res, err := s.executor.Execute(ctx, opp)
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	return results, err
}

// Stop ends the loop, waits for dispatched legs and prints final statistics.
// It is safe to call more than once and from multiple goroutines.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		ctx := context.Background()
		s.setState(StateShuttingDown)
		close(s.stopCh)
		s.log.Info(ctx, "stopping scan scheduler")

		// A cycle in progress finishes its dispatched executions first.
		s.cycleMu.Lock()
		defer s.cycleMu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
		if err := s.executor.Wait(waitCtx); err != nil {
			s.log.Error(ctx, "legs still in flight at shutdown", "error", err)
		}

		if s.started.Load() {
			if err := s.reporter.Stop(); err != nil {
				s.log.Error(ctx, "reporter stop failed", "error", err)
			}
		}

		snap := s.stats.Snapshot()
		s.log.Info(ctx, "final statistics",
			"cycles", snap.Cycles,
			"opportunities", snap.Opportunities,
			"executions", snap.Executions,
			"successes", snap.Successes,
			"exposed", snap.Exposed,
			"realized_profit", snap.RealizedProfit.String())
		fmt.Fprint(s.summary, snap.Summary())

		s.setState(StateStopped)
		close(s.done)
	})
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// setState moves to st. Once shutdown has begun only later states apply.
func (s *Scheduler) setState(st State) {
	for {
		cur := s.state.Load()
		if State(cur) >= StateShuttingDown && st < State(cur) {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}
