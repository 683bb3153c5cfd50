package app

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
)

const (
	shareDecimals        = 2
	defaultPriceDecimals = 3
)

// SizingConfig bounds order size and price.
type SizingConfig struct {
	MaxBet        decimal.Decimal
	Slippage      decimal.Decimal
	MaxLimitPrice decimal.Decimal
	// PriceDecimals is the tick precision per venue.
	PriceDecimals map[venueDomain.Venue]int32
}

func (c SizingConfig) decimalsFor(v venueDomain.Venue) int32 {
	if d, ok := c.PriceDecimals[v]; ok {
		return d
	}
	return defaultPriceDecimals
}

// LimitPrice is ask + slippage rounded up to the venue tick, capped at MaxLimitPrice.
func (c SizingConfig) LimitPrice(venue venueDomain.Venue, ask decimal.Decimal) decimal.Decimal {
	limit := ask.Add(c.Slippage).RoundCeil(c.decimalsFor(venue))
	if c.MaxLimitPrice.IsPositive() && limit.GreaterThan(c.MaxLimitPrice) {
		return c.MaxLimitPrice
	}
	return limit
}

// BuildIntents sizes both legs of an opportunity. Both legs buy the same
// number of shares and neither leg's notional exceeds MaxBet.
func BuildIntents(opp domain.Opportunity, cfg SizingConfig) (a, b venueDomain.OrderIntent, err error) {
	legA, legB := opp.LegA(), opp.LegB()
	limitA := cfg.LimitPrice(legA.Venue, legA.Ask)
	limitB := cfg.LimitPrice(legB.Venue, legB.Ask)

	shares := cfg.MaxBet.Div(decimal.Max(limitA, limitB)).RoundFloor(shareDecimals)
	if !shares.IsPositive() {
		return a, b, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext(fmt.Sprintf("max bet %s buys no shares at %s/%s", cfg.MaxBet, limitA, limitB)))
	}

	a = intent(legA, shares, limitA, cfg.Slippage)
	b = intent(legB, shares, limitB, cfg.Slippage)
	return a, b, nil
}

func intent(leg domain.Leg, shares, limit, slippage decimal.Decimal) venueDomain.OrderIntent {
	return venueDomain.OrderIntent{
		ClientOrderID: uuid.NewString(),
		Venue:         leg.Venue,
		MarketID:      leg.MarketID,
		TokenID:       leg.TokenID,
		Outcome:       leg.Outcome,
		Shares:        shares,
		Notional:      shares.Mul(limit),
		LimitPrice:    limit,
		Slippage:      slippage,
		Type:          venueDomain.OrderTypeFOK,
	}
}
