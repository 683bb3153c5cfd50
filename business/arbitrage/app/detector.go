package app

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

var one = decimal.NewFromInt(1)

// DetectorConfig holds the admission threshold and cost assumptions.
type DetectorConfig struct {
	// MinSpread is the required discount below $1, as a fraction.
	MinSpread decimal.Decimal
	// Slippage is charged once per leg.
	Slippage decimal.Decimal
	FeeRate  decimal.Decimal
}

// Detector evaluates matched pairs for arbitrage.
type Detector struct {
	config    DetectorConfig
	threshold decimal.Decimal
	now       func() time.Time
}

// NewDetector creates a Detector. now defaults to time.Now.
func NewDetector(cfg DetectorConfig, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{
		config:    cfg,
		threshold: one.Sub(cfg.MinSpread),
		now:       now,
	}
}

// Admits reports whether a total cost clears the minimum spread.
func (d *Detector) Admits(cost decimal.Decimal) bool {
	return cost.LessThan(d.threshold)
}

// Detect prices both directions of a pair and returns the cheaper one if it
// is admitted. Ties go to A_YES_B_NO.
func (d *Detector) Detect(pair venueDomain.MatchedPair) (domain.Opportunity, bool) {
	now := d.now()
	if !pair.A.IsFresh(now) || !pair.B.IsFresh(now) {
		return domain.Opportunity{}, false
	}

	best := domain.DirectionAYesBNo
	bestCost := cost(pair, best)
	if c := cost(pair, domain.DirectionANoBYes); c.LessThan(bestCost) {
		best, bestCost = domain.DirectionANoBYes, c
	}

	if !d.Admits(bestCost) {
		return domain.Opportunity{}, false
	}
	return d.opportunity(pair, best, bestCost, now), true
}

// DetectAll runs Detect over pairs and returns the admitted opportunities ranked.
func (d *Detector) DetectAll(pairs []venueDomain.MatchedPair) []domain.Opportunity {
	opps := make([]domain.Opportunity, 0, len(pairs))
	for _, p := range pairs {
		if opp, ok := d.Detect(p); ok {
			opps = append(opps, opp)
		}
	}
	Rank(opps)
	return opps
}

// Reprice recomputes an opportunity in the same direction from current
// quotes of the same markets. It reports false when the position is no
// longer admitted or a quote is not fresh.
func (d *Detector) Reprice(opp domain.Opportunity, a, b venueDomain.Quote) (domain.Opportunity, bool) {
	now := d.now()
	if !a.IsFresh(now) || !b.IsFresh(now) {
		return domain.Opportunity{}, false
	}

	pair := venueDomain.NewMatchedPair(opp.Pair.Key, a, b)
	c := cost(pair, opp.Direction)
	if !d.Admits(c) {
		return domain.Opportunity{}, false
	}
	return d.opportunity(pair, opp.Direction, c, now), true
}

// ExpectedProfit is 1 - cost - 2*slippage - fees, per share pair.
func (d *Detector) ExpectedProfit(cost decimal.Decimal) decimal.Decimal {
	return one.Sub(cost).
		Sub(d.config.Slippage.Mul(decimal.NewFromInt(2))).
		Sub(d.config.FeeRate)
}

func (d *Detector) opportunity(pair venueDomain.MatchedPair, dir domain.Direction, c decimal.Decimal, now time.Time) domain.Opportunity {
	return domain.Opportunity{
		Pair:           pair,
		Direction:      dir,
		Cost:           c,
		Spread:         one.Sub(c),
		ExpectedProfit: d.ExpectedProfit(c),
		DetectedAt:     now,
	}
}

func cost(pair venueDomain.MatchedPair, dir domain.Direction) decimal.Decimal {
	a, b := dir.Legs()
	return pair.A.Ask(a).Add(pair.B.Ask(b))
}

// Rank orders opportunities by expected profit descending, then strike
// difference, venue A market and venue B market ascending.
func Rank(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		x, y := opps[i], opps[j]
		if c := x.ExpectedProfit.Cmp(y.ExpectedProfit); c != 0 {
			return c > 0
		}
		if c := x.Pair.StrikeDiff.Cmp(y.Pair.StrikeDiff); c != 0 {
			return c < 0
		}
		if x.Pair.A.MarketID != y.Pair.A.MarketID {
			return x.Pair.A.MarketID < y.Pair.A.MarketID
		}
		return x.Pair.B.MarketID < y.Pair.B.MarketID
	})
}
