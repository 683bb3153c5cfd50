package app

import (
	"testing"

	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
)

func TestSizingConfig_LimitPrice(t *testing.T) {
	cfg := testSizing()
	cfg.PriceDecimals = map[venueDomain.Venue]int32{venueDomain.VenuePolymarket: 2}

	tests := []struct {
		name  string
		venue venueDomain.Venue
		ask   string
		want  string
	}{
		{name: "adds_slippage", venue: venueDomain.VenueLimitless, ask: "0.40", want: "0.405"},
		{name: "rounds_up_to_tick", venue: venueDomain.VenuePolymarket, ask: "0.44", want: "0.45"},
		{name: "default_tick", venue: venueDomain.VenueLimitless, ask: "0.4123", want: "0.418"},
		{name: "capped", venue: venueDomain.VenueLimitless, ask: "0.989", want: "0.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.LimitPrice(tt.venue, dec(tt.ask)); !got.Equal(dec(tt.want)) {
				t.Errorf("LimitPrice(%s) = %s, want %s", tt.ask, got, tt.want)
			}
		})
	}
}

func TestBuildIntents(t *testing.T) {
	opp, _ := testDetector().Detect(scenarioPair(t))

	a, b, err := BuildIntents(opp, testSizing())
	if err != nil {
		t.Fatalf("BuildIntents() error = %v", err)
	}

	if a.Venue != venueDomain.VenueLimitless || a.Outcome != venueDomain.OutcomeYes {
		t.Errorf("leg A = %s %s, want limitless YES", a.Venue, a.Outcome)
	}
	if b.Venue != venueDomain.VenuePolymarket || b.Outcome != venueDomain.OutcomeNo {
		t.Errorf("leg B = %s %s, want polymarket NO", b.Venue, b.Outcome)
	}
	if b.TokenID != "n1" {
		t.Errorf("leg B TokenID = %q, want n1", b.TokenID)
	}
	if !a.LimitPrice.Equal(dec("0.405")) || !b.LimitPrice.Equal(dec("0.445")) {
		t.Errorf("limits = %s/%s, want 0.405/0.445", a.LimitPrice, b.LimitPrice)
	}
	// floor(10 / 0.445, 2)
	if !a.Shares.Equal(dec("22.47")) || !b.Shares.Equal(a.Shares) {
		t.Errorf("shares = %s/%s, want 22.47 on both legs", a.Shares, b.Shares)
	}
	for _, in := range []venueDomain.OrderIntent{a, b} {
		if in.Notional.GreaterThan(dec("10")) {
			t.Errorf("%s notional %s exceeds max bet", in.Venue, in.Notional)
		}
		if in.Type != venueDomain.OrderTypeFOK {
			t.Errorf("%s order type = %s, want FOK", in.Venue, in.Type)
		}
		if in.ClientOrderID == "" {
			t.Errorf("%s has no client order id", in.Venue)
		}
	}
	if a.ClientOrderID == b.ClientOrderID {
		t.Error("legs share a client order id")
	}
}

func TestBuildIntents_MaxBetTooSmall(t *testing.T) {
	opp, _ := testDetector().Detect(scenarioPair(t))
	cfg := testSizing()
	cfg.MaxBet = dec("0.001")

	_, _, err := BuildIntents(opp, cfg)
	if !apperror.HasCode(err, apperror.CodeInvalidTradeSize) {
		t.Errorf("BuildIntents() error = %v, want %s", err, apperror.CodeInvalidTradeSize)
	}
}
