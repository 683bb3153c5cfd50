package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTitle(t *testing.T) {
	ref := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
	fallback := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		title      string
		fallback   time.Time
		wantStrike string
		wantExpiry time.Time
		wantErr    bool
	}{
		{
			name:       "symbol_with_time",
			title:      "Will BTC be above $95,000 at 14:00 UTC?",
			wantStrike: "95000",
			wantExpiry: time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC),
		},
		{
			name:       "name_with_decimals",
			title:      "Bitcoin above $94,250.50 on October 18, 9:30 UTC",
			wantStrike: "94250.5",
			wantExpiry: time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
		},
		{
			name:       "early_time_rolls_to_next_day",
			title:      "$BTC above $96,000 at 00:00UTC",
			wantStrike: "96000",
			wantExpiry: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "fallback_expiry",
			title:      "Will Bitcoin be above $95,000?",
			fallback:   fallback,
			wantStrike: "95000",
			wantExpiry: fallback,
		},
		{name: "no_time_no_fallback", title: "Will Bitcoin be above $95,000?", wantErr: true},
		{name: "other_underlying", title: "Will ETH be above $3,000 at 14:00 UTC?", wantErr: true},
		{name: "no_strike", title: "Will BTC go up at 14:00 UTC?", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms, err := ParseTitle(tt.title, "BTC", ref, tt.fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTitle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !terms.Strike.Equal(decimal.RequireFromString(tt.wantStrike)) {
				t.Errorf("Strike = %s, want %s", terms.Strike, tt.wantStrike)
			}
			if !terms.Expiry.Equal(tt.wantExpiry) {
				t.Errorf("Expiry = %s, want %s", terms.Expiry, tt.wantExpiry)
			}
			if terms.Underlying != "BTC" {
				t.Errorf("Underlying = %s, want BTC", terms.Underlying)
			}
		})
	}
}
