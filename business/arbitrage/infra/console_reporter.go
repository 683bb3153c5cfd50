// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a ConsoleReporter writing to out, or stdout when nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out}
}

// Start prints the startup banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "Prediction Arbitrage Started")
	fmt.Fprintln(r.out, "============================")
	return nil
}

// ReportOpportunity prints a detected opportunity.
func (r *ConsoleReporter) ReportOpportunity(_ context.Context, opp domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, b := opp.LegA(), opp.LegB()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, heavyRule)
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY DETECTED")
	fmt.Fprintln(r.out, heavyRule)
	fmt.Fprintf(r.out, "Detected:       %s\n", opp.DetectedAt.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Event:          %s\n", opp.Pair.Key)
	fmt.Fprintf(r.out, "Direction:      %s\n", opp.Direction.String())
	fmt.Fprintln(r.out, lightRule)
	fmt.Fprintln(r.out, "LEGS")
	fmt.Fprintf(r.out, "  %-11s   %s %s @ %s (strike %s)\n", a.Venue, a.Outcome, a.MarketID, a.Ask.StringFixed(3), opp.Pair.A.Strike)
	fmt.Fprintf(r.out, "  %-11s   %s %s @ %s (strike %s)\n", b.Venue, b.Outcome, b.MarketID, b.Ask.StringFixed(3), opp.Pair.B.Strike)
	fmt.Fprintf(r.out, "  Strike diff:  %s\n", opp.Pair.StrikeDiff)
	fmt.Fprintln(r.out, lightRule)
	fmt.Fprintln(r.out, "PROFIT")
	fmt.Fprintf(r.out, "  Cost:         $%s\n", opp.Cost.StringFixed(3))
	fmt.Fprintf(r.out, "  Spread:       %s%%\n", opp.Spread.Shift(2).StringFixed(2))
	fmt.Fprintf(r.out, "  Expected:     $%s per pair\n", opp.ExpectedProfit.StringFixed(3))
	fmt.Fprintln(r.out, heavyRule)
}

// ReportTrade prints the result of a trade that placed orders. Skipped
// attempts are left to the logs.
func (r *ConsoleReporter) ReportTrade(_ context.Context, res domain.TradeResult) {
	if !res.Status.Executed() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "[%s] TRADE %s %s (%s)\n",
		res.FinishedAt.Format("15:04:05"), strings.ToUpper(string(res.Status)), res.ID, res.Latency.Round(time.Millisecond))
	for _, leg := range []domain.LegResult{res.LegA, res.LegB} {
		line := fmt.Sprintf("  %-11s %s %s x %s @ %s: %s",
			leg.Intent.Venue, leg.Intent.Outcome, leg.Intent.MarketID,
			leg.Intent.Shares, leg.Intent.LimitPrice, leg.Status)
		if leg.Filled() {
			line += fmt.Sprintf(" %s @ %s", leg.Fill.Shares, leg.Fill.AvgPrice.StringFixed(4))
		}
		if leg.Err != nil {
			line += " (" + leg.Err.Error() + ")"
		}
		fmt.Fprintln(r.out, line)
	}
	switch res.Status {
	case domain.TradeSuccess:
		fmt.Fprintf(r.out, "  Realized:    $%s\n", res.RealizedProfit.StringFixed(2))
	case domain.TradeExposed:
		fmt.Fprintln(r.out, "  !! EXPOSED: one leg filled without its hedge")
	}
}

// ReportLateLeg prints a leg that resolved after its trade timed out.
func (r *ConsoleReporter) ReportLateLeg(_ context.Context, late domain.LateLeg) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "[%s] LATE LEG %s %s %s: %s %s\n",
		time.Now().Format("15:04:05"), late.TradeID,
		late.Leg.Intent.Venue, late.Leg.Intent.MarketID,
		late.Leg.Status, late.Leg.Fill.Shares)
}

// Stop prints the shutdown line.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Prediction Arbitrage Stopped")
	return nil
}
