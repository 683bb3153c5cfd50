package domain

import "github.com/shopspring/decimal"

// MatchedPair is a venue A quote and a venue B quote for the same event.
type MatchedPair struct {
	Key MatchKey
	A   Quote
	B   Quote
	// StrikeDiff is |A.Strike - B.Strike|, a confidence signal for the match.
	StrikeDiff decimal.Decimal
}

// NewMatchedPair builds a pair and computes its strike difference.
func NewMatchedPair(key MatchKey, a, b Quote) MatchedPair {
	return MatchedPair{
		Key:        key,
		A:          a,
		B:          b,
		StrikeDiff: a.Strike.Sub(b.Strike).Abs(),
	}
}
