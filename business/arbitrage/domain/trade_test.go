package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

func fill(shares, price string) venueDomain.Fill {
	return venueDomain.Fill{
		Shares:   decimal.RequireFromString(shares),
		AvgPrice: decimal.RequireFromString(price),
	}
}

func leg(status LegStatus) LegResult {
	return LegResult{Status: status}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		a, b LegStatus
		want TradeStatus
	}{
		{name: "both_filled", a: LegFilled, b: LegFilled, want: TradeSuccess},
		{name: "a_filled_b_failed", a: LegFilled, b: LegFailed, want: TradeExposed},
		{name: "a_unfilled_b_filled", a: LegUnfilled, b: LegFilled, want: TradeExposed},
		{name: "a_filled_b_timed_out", a: LegFilled, b: LegTimedOut, want: TradeExposed},
		{name: "neither_filled", a: LegUnfilled, b: LegFailed, want: TradeNoOp},
		{name: "both_timed_out", a: LegTimedOut, b: LegTimedOut, want: TradeNoOp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(leg(tt.a), leg(tt.b)); got != tt.want {
				t.Errorf("Classify(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRealizedProfit(t *testing.T) {
	tests := []struct {
		name string
		a, b venueDomain.Fill
		want string
	}{
		{
			// 11.76 pairs at 0.405 + 0.445 = 0.85 each
			name: "equal_fills",
			a:    fill("11.76", "0.405"),
			b:    fill("11.76", "0.445"),
			want: "1.764",
		},
		{
			name: "uneven_fills_pay_only_hedged_shares",
			a:    fill("10", "0.40"),
			b:    fill("8", "0.45"),
			want: "0.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RealizedProfit(tt.a, tt.b)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("RealizedProfit() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDirection_Legs(t *testing.T) {
	a, b := DirectionAYesBNo.Legs()
	if a != venueDomain.OutcomeYes || b != venueDomain.OutcomeNo {
		t.Errorf("A_YES_B_NO legs = %s/%s", a, b)
	}
	a, b = DirectionANoBYes.Legs()
	if a != venueDomain.OutcomeNo || b != venueDomain.OutcomeYes {
		t.Errorf("A_NO_B_YES legs = %s/%s", a, b)
	}
}

func TestOpportunity_LegsAndGuardKey(t *testing.T) {
	expiry := time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC)
	qa := venueDomain.Quote{
		Venue:    venueDomain.VenueLimitless,
		MarketID: "btc-95k",
		Yes:      decimal.RequireFromString("0.40"),
		No:       decimal.RequireFromString("0.60"),
	}
	qb := venueDomain.Quote{
		Venue:    venueDomain.VenuePolymarket,
		MarketID: "0xaaa",
		Yes:      decimal.RequireFromString("0.55"),
		No:       decimal.RequireFromString("0.44"),
		YesToken: "y1",
		NoToken:  "n1",
	}
	key := venueDomain.MatchKey{Underlying: "BTC", Expiry: expiry, Strike: decimal.NewFromInt(95000)}
	opp := Opportunity{Pair: venueDomain.NewMatchedPair(key, qa, qb), Direction: DirectionAYesBNo}

	if got, want := opp.GuardKey(), "BTC|2026-10-18T14:00Z|95000|A_YES_B_NO"; got != want {
		t.Errorf("GuardKey() = %s, want %s", got, want)
	}

	la, lb := opp.LegA(), opp.LegB()
	if la.Outcome != venueDomain.OutcomeYes || !la.Ask.Equal(decimal.RequireFromString("0.40")) {
		t.Errorf("leg A = %s @ %s", la.Outcome, la.Ask)
	}
	if lb.Outcome != venueDomain.OutcomeNo || !lb.Ask.Equal(decimal.RequireFromString("0.44")) || lb.TokenID != "n1" {
		t.Errorf("leg B = %s @ %s token %s", lb.Outcome, lb.Ask, lb.TokenID)
	}
}

func TestStatsSnapshot_SuccessRate(t *testing.T) {
	tests := []struct {
		name  string
		stats StatsSnapshot
		want  string
	}{
		{name: "no_executions", stats: StatsSnapshot{}, want: "0"},
		{name: "three_of_four", stats: StatsSnapshot{Executions: 4, Successes: 3}, want: "0.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.SuccessRate(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("SuccessRate() = %s, want %s", got, tt.want)
			}
		})
	}
}
