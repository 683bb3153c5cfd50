package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatsSnapshot is a point-in-time copy of runtime statistics.
type StatsSnapshot struct {
	StartedAt time.Time     `json:"started_at"`
	Uptime    time.Duration `json:"uptime_ns"`

	Cycles        int64 `json:"cycles"`
	CyclesAborted int64 `json:"cycles_aborted"`
	Opportunities int64 `json:"opportunities"`

	Executions      int64 `json:"executions"`
	Successes       int64 `json:"successes"`
	NoOps           int64 `json:"no_ops"`
	Exposed         int64 `json:"exposed"`
	AlreadyInFlight int64 `json:"already_in_flight"`
	Stale           int64 `json:"stale"`
	Failed          int64 `json:"failed"`
	LateLegs        int64 `json:"late_legs"`

	RealizedProfit decimal.Decimal `json:"realized_profit"`
}

// SuccessRate is successes over executed trades, in [0,1].
func (s StatsSnapshot) SuccessRate() decimal.Decimal {
	if s.Executions == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.Successes).Div(decimal.NewFromInt(s.Executions))
}

// Summary renders the snapshot for the shutdown report.
func (s StatsSnapshot) Summary() string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "FINAL STATISTICS")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Uptime:             %s\n", s.Uptime.Truncate(time.Second))
	fmt.Fprintf(&b, "Cycles:             %d (%d aborted)\n", s.Cycles, s.CyclesAborted)
	fmt.Fprintf(&b, "Opportunities:      %d\n", s.Opportunities)
	fmt.Fprintf(&b, "Executions:         %d\n", s.Executions)
	fmt.Fprintf(&b, "  Success:          %d\n", s.Successes)
	fmt.Fprintf(&b, "  No-op:            %d\n", s.NoOps)
	fmt.Fprintf(&b, "  Exposed:          %d\n", s.Exposed)
	fmt.Fprintf(&b, "Already in flight:  %d\n", s.AlreadyInFlight)
	fmt.Fprintf(&b, "Stale:              %d\n", s.Stale)
	fmt.Fprintf(&b, "Failed:             %d\n", s.Failed)
	fmt.Fprintf(&b, "Late legs:          %d\n", s.LateLegs)
	fmt.Fprintf(&b, "Success rate:       %s%%\n", s.SuccessRate().Mul(decimal.NewFromInt(100)).StringFixed(1))
	fmt.Fprintf(&b, "Realized profit:    $%s\n", s.RealizedProfit.StringFixed(2))
	fmt.Fprintln(&b, line)

	return b.String()
}
