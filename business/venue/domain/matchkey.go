package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchKey groups quotes from different venues that settle on the same event.
type MatchKey struct {
	Underlying string
	Expiry     time.Time
	// Strike is the rounded strike, zero when strike rounding is disabled.
	Strike decimal.Decimal
}

// String renders the key, e.g. "BTC|2026-10-18T14:00Z|95000".
func (k MatchKey) String() string {
	var sb strings.Builder
	sb.WriteString(k.Underlying)
	sb.WriteByte('|')
	sb.WriteString(k.Expiry.UTC().Format("2006-01-02T15:04Z"))
	if !k.Strike.IsZero() {
		sb.WriteByte('|')
		sb.WriteString(k.Strike.String())
	}
	return sb.String()
}

// KeyPolicy normalizes market terms into match keys.
type KeyPolicy struct {
	// StrikeRounding rounds strikes to the nearest multiple. Zero leaves strike out of the key.
	StrikeRounding decimal.Decimal
	// ExpiryBucket truncates expiry times. Zero keeps them at minute precision.
	ExpiryBucket time.Duration
}

// KeyFor derives the match key of a quote.
func (p KeyPolicy) KeyFor(q Quote) MatchKey {
	bucket := p.ExpiryBucket
	if bucket <= 0 {
		bucket = time.Minute
	}

	key := MatchKey{
		Underlying: strings.ToUpper(q.Underlying),
		Expiry:     q.Expiry.UTC().Truncate(bucket),
	}
	if p.StrikeRounding.IsPositive() {
		key.Strike = q.Strike.Div(p.StrikeRounding).Round(0).Mul(p.StrikeRounding)
	}
	return key
}
