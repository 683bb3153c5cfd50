package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the venue time-in-force.
type OrderType string

// OrderTypeFOK fills completely at or below the limit or not at all.
const OrderTypeFOK OrderType = "FOK"

// OrderIntent is one leg of a paired trade, ready for submission.
type OrderIntent struct {
	// ClientOrderID stays the same across retries so venues can deduplicate.
	ClientOrderID string
	Venue         Venue
	MarketID      string
	TokenID       string
	Outcome       Outcome
	Shares        decimal.Decimal
	// Notional is Shares x LimitPrice, never above the configured bet cap.
	Notional   decimal.Decimal
	LimitPrice decimal.Decimal
	Slippage   decimal.Decimal
	Type       OrderType
}

// Fill is a venue's confirmation of an executed order.
type Fill struct {
	OrderID  string
	Shares   decimal.Decimal
	AvgPrice decimal.Decimal
	FilledAt time.Time
}

// Cost returns the amount spent on the fill.
func (f Fill) Cost() decimal.Decimal {
	return f.Shares.Mul(f.AvgPrice)
}

// IsFilled reports whether any shares were bought.
func (f Fill) IsFilled() bool {
	return f.Shares.IsPositive()
}

// MarketFilter narrows a quote fetch.
type MarketFilter struct {
	Underlying string
	// MarketIDs restricts the fetch to specific markets. Empty means all active markets.
	MarketIDs []string
}
