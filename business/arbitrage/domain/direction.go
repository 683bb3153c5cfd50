// Package domain contains the core domain types for the arbitrage context.
package domain

import venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"

// Direction is the pair of outcomes bought across the two venues.
type Direction string

const (
	// DirectionAYesBNo buys YES on venue A and NO on venue B.
	DirectionAYesBNo Direction = "A_YES_B_NO"

	// DirectionANoBYes buys NO on venue A and YES on venue B.
	DirectionANoBYes Direction = "A_NO_B_YES"
)

// Directions lists both directions in tie-break order.
var Directions = []Direction{DirectionAYesBNo, DirectionANoBYes}

// Legs returns the outcome bought on venue A and on venue B.
func (d Direction) Legs() (a, b venueDomain.Outcome) {
	if d == DirectionANoBYes {
		return venueDomain.OutcomeNo, venueDomain.OutcomeYes
	}
	return venueDomain.OutcomeYes, venueDomain.OutcomeNo
}

// String returns a human-readable description of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionAYesBNo:
		return "A_YES_B_NO (buy YES on A, NO on B)"
	case DirectionANoBYes:
		return "A_NO_B_YES (buy NO on A, YES on B)"
	default:
		return "Unknown"
	}
}
