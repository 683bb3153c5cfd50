package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	"github.com/fd1az/prediction-arb/internal/logger"
)

const defaultQueueSize = 64

var _ app.Reporter = (*Notifier)(nil)

// Notifier is a Reporter that alerts operators about exposed trades and
// legs that filled after their trade timed out. Alerts are delivered by a
// background worker; when the queue is full the alert is dropped and logged.
type Notifier struct {
	senders []Sender
	log     logger.LoggerInterface

	queue    chan Alert
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewNotifier creates a Notifier over senders.
func NewNotifier(log logger.LoggerInterface, senders ...Sender) *Notifier {
	return &Notifier{
		senders: senders,
		log:     log,
		queue:   make(chan Alert, defaultQueueSize),
	}
}

// Start launches the delivery worker.
func (n *Notifier) Start(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for alert := range n.queue {
			n.deliver(ctx, alert)
		}
	}()
	n.log.Info(ctx, "notifier started", "channels", len(n.senders))
	return nil
}

func (n *Notifier) deliver(ctx context.Context, alert Alert) {
	for _, s := range n.senders {
		if err := s.Send(ctx, alert); err != nil {
			n.log.Error(ctx, "alert delivery failed", "channel", s.Name(), "title", alert.Title, "error", err)
		}
	}
}

func (n *Notifier) enqueue(ctx context.Context, alert Alert) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- alert:
	default:
		n.log.Warn(ctx, "alert queue full, dropping alert", "title", alert.Title)
	}
}

// ReportOpportunity does nothing; opportunities are not alerts.
func (n *Notifier) ReportOpportunity(context.Context, domain.Opportunity) {}

// ReportTrade alerts on exposed trades.
func (n *Notifier) ReportTrade(ctx context.Context, res domain.TradeResult) {
	if res.Status != domain.TradeExposed {
		return
	}
	n.enqueue(ctx, ExposedAlert(res))
}

// ReportLateLeg alerts when a timed out leg turns out to have filled.
func (n *Notifier) ReportLateLeg(ctx context.Context, late domain.LateLeg) {
	if !late.Leg.Filled() {
		return
	}
	n.enqueue(ctx, LateFillAlert(late))
}

// Stop drains queued alerts and waits for the worker.
func (n *Notifier) Stop() error {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	n.wg.Wait()
	return nil
}

// ExposedAlert describes a trade with one unhedged leg.
func ExposedAlert(res domain.TradeResult) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "Trade %s on %s (%s)\n", res.ID, res.Opportunity.Pair.Key, res.Opportunity.Direction)
	for _, leg := range []domain.LegResult{res.LegA, res.LegB} {
		fmt.Fprintf(&b, "%s %s %s: %s", leg.Intent.Venue, leg.Intent.Outcome, leg.Intent.MarketID, leg.Status)
		if leg.Filled() {
			fmt.Fprintf(&b, " %s shares @ %s", leg.Fill.Shares, leg.Fill.AvgPrice)
		}
		if leg.Err != nil {
			fmt.Fprintf(&b, " (%v)", leg.Err)
		}
		b.WriteByte('\n')
	}
	b.WriteString("Manual hedge required.")
	return Alert{Title: "EXPOSED position", Body: b.String()}
}

// LateFillAlert describes a leg that filled after its trade was classified.
func LateFillAlert(late domain.LateLeg) Alert {
	leg := late.Leg
	return Alert{
		Title: "Late fill",
		Body: fmt.Sprintf("Trade %s: %s %s %s filled %s shares @ %s after the execution timeout.\nCheck the paired leg.",
			late.TradeID, leg.Intent.Venue, leg.Intent.Outcome, leg.Intent.MarketID, leg.Fill.Shares, leg.Fill.AvgPrice),
	}
}
