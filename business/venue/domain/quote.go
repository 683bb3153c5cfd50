// Package domain contains the core domain types for the venue context.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/internal/apperror"
)

// Venue identifies a trading platform.
type Venue string

const (
	VenueLimitless  Venue = "limitless"
	VenuePolymarket Venue = "polymarket"
)

// Outcome is one side of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Opposite returns the complementary outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// MarketTerms describes the real-world event a market settles on.
type MarketTerms struct {
	Title      string
	Underlying string
	Strike     decimal.Decimal
	Expiry     time.Time
}

// Quote is a best-ask snapshot for one binary market. Quotes are values:
// the cache replaces them on refresh and never mutates them.
type Quote struct {
	Venue    Venue
	MarketID string
	MarketTerms

	Yes decimal.Decimal
	No  decimal.Decimal

	// Venue routing ids for each outcome. Empty when the venue routes by market id.
	YesToken string
	NoToken  string

	ObservedAt time.Time
	// FreshUntil is set by the quote cache to ObservedAt + TTL.
	FreshUntil time.Time
}

var one = decimal.NewFromInt(1)

// NewQuote validates prices and builds a quote. Both asks must lie in (0,1).
func NewQuote(venue Venue, marketID string, terms MarketTerms, yes, no decimal.Decimal, observedAt time.Time) (Quote, error) {
	if marketID == "" {
		return Quote{}, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithVenue(string(venue)), apperror.WithContext("empty market id"))
	}
	for _, p := range []struct {
		name  string
		price decimal.Decimal
	}{{"yes", yes}, {"no", no}} {
		if !p.price.IsPositive() || p.price.GreaterThanOrEqual(one) {
			return Quote{}, apperror.New(apperror.CodeInvalidQuote,
				apperror.WithVenue(string(venue)),
				apperror.WithContext(fmt.Sprintf("market %s: %s ask %s outside (0,1)", marketID, p.name, p.price)))
		}
	}

	return Quote{
		Venue:       venue,
		MarketID:    marketID,
		MarketTerms: terms,
		Yes:         yes,
		No:          no,
		ObservedAt:  observedAt,
	}, nil
}

// WithTokens returns a copy carrying the outcome token ids.
func (q Quote) WithTokens(yes, no string) Quote {
	q.YesToken = yes
	q.NoToken = no
	return q
}

// Ask returns the best ask for an outcome.
func (q Quote) Ask(o Outcome) decimal.Decimal {
	if o == OutcomeYes {
		return q.Yes
	}
	return q.No
}

// Token returns the routing id for an outcome.
func (q Quote) Token(o Outcome) string {
	if o == OutcomeYes {
		return q.YesToken
	}
	return q.NoToken
}

// IsFresh reports whether the quote may still be used at now.
// A quote without a deadline has not been through the cache and is never fresh.
func (q Quote) IsFresh(now time.Time) bool {
	return !q.FreshUntil.IsZero() && now.Before(q.FreshUntil)
}

// Key returns the cache key for this quote.
func (q Quote) Key() QuoteKey {
	return QuoteKey{Venue: q.Venue, MarketID: q.MarketID}
}

// QuoteKey is the composite cache key.
type QuoteKey struct {
	Venue    Venue
	MarketID string
}
