package app

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/venue/domain"
)

// Matcher pairs venue A and venue B quotes that settle on the same event.
type Matcher struct {
	policy        domain.KeyPolicy
	maxStrikeDiff decimal.Decimal
	now           func() time.Time
}

// NewMatcher creates a matcher. Pairs further apart than maxStrikeDiff are never emitted.
func NewMatcher(policy domain.KeyPolicy, maxStrikeDiff decimal.Decimal, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{policy: policy, maxStrikeDiff: maxStrikeDiff, now: now}
}

// Policy returns the key policy used for grouping.
func (m *Matcher) Policy() domain.KeyPolicy {
	return m.policy
}

// Match emits every fresh (A, B) combination sharing a MatchKey within the
// strike tolerance. Output order depends only on the input quotes.
func (m *Matcher) Match(quotesA, quotesB []domain.Quote) []domain.MatchedPair {
	now := m.now()

	byKey := make(map[string][]domain.Quote, len(quotesA))
	keys := make(map[string]domain.MatchKey, len(quotesA))
	for _, a := range quotesA {
		if !a.IsFresh(now) {
			continue
		}
		key := m.policy.KeyFor(a)
		ks := key.String()
		byKey[ks] = append(byKey[ks], a)
		keys[ks] = key
	}

	var pairs []domain.MatchedPair
	for _, b := range quotesB {
		if !b.IsFresh(now) {
			continue
		}
		ks := m.policy.KeyFor(b).String()
		for _, a := range byKey[ks] {
			pair := domain.NewMatchedPair(keys[ks], a, b)
			if pair.StrikeDiff.GreaterThan(m.maxStrikeDiff) {
				continue
			}
			pairs = append(pairs, pair)
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairLess(pairs[i], pairs[j])
	})
	return pairs
}

func pairLess(x, y domain.MatchedPair) bool {
	if kx, ky := x.Key.String(), y.Key.String(); kx != ky {
		return kx < ky
	}
	if c := x.StrikeDiff.Cmp(y.StrikeDiff); c != 0 {
		return c < 0
	}
	if x.A.MarketID != y.A.MarketID {
		return x.A.MarketID < y.A.MarketID
	}
	return x.B.MarketID < y.B.MarketID
}
