package domain

import (
	"time"

	"github.com/shopspring/decimal"

	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

// Opportunity is an admitted cross-venue position: buying both legs costs
// less than the guaranteed $1 payout by more than the minimum spread.
type Opportunity struct {
	Pair      venueDomain.MatchedPair
	Direction Direction

	// Cost is the sum of the two best asks for one share of each leg.
	Cost decimal.Decimal
	// Spread is 1 - Cost.
	Spread decimal.Decimal
	// ExpectedProfit is per share pair, after slippage on both legs and fees.
	ExpectedProfit decimal.Decimal

	DetectedAt time.Time
}

// GuardKey identifies the event and direction for the in-flight guard.
func (o Opportunity) GuardKey() string {
	return o.Pair.Key.String() + "|" + string(o.Direction)
}

// Leg describes what to buy on one venue.
type Leg struct {
	Venue    venueDomain.Venue
	MarketID string
	Outcome  venueDomain.Outcome
	TokenID  string
	Ask      decimal.Decimal
}

// LegA returns the venue A leg.
func (o Opportunity) LegA() Leg {
	outcome, _ := o.Direction.Legs()
	return legOf(o.Pair.A, outcome)
}

// LegB returns the venue B leg.
func (o Opportunity) LegB() Leg {
	_, outcome := o.Direction.Legs()
	return legOf(o.Pair.B, outcome)
}

func legOf(q venueDomain.Quote, outcome venueDomain.Outcome) Leg {
	return Leg{
		Venue:    q.Venue,
		MarketID: q.MarketID,
		Outcome:  outcome,
		TokenID:  q.Token(outcome),
		Ask:      q.Ask(outcome),
	}
}
