package domain

import (
	"time"

	"github.com/shopspring/decimal"

	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

// TradeStatus is the terminal outcome of one execution attempt.
type TradeStatus string

const (
	// TradeSuccess means both legs filled.
	TradeSuccess TradeStatus = "success"
	// TradeNoOp means neither leg filled.
	TradeNoOp TradeStatus = "no_op"
	// TradeExposed means exactly one leg filled. The position is left open
	// for manual resolution.
	TradeExposed TradeStatus = "exposed"
	// TradeAlreadyInFlight means another execution held the guard.
	TradeAlreadyInFlight TradeStatus = "already_in_flight"
	// TradeStale means the opportunity no longer held on re-validation.
	TradeStale TradeStatus = "stale"
	// TradeFailed means execution could not start, e.g. the guard backend
	// was unavailable or no tradable size remained.
	TradeFailed TradeStatus = "failed"
)

// Executed reports whether orders were submitted.
func (s TradeStatus) Executed() bool {
	return s == TradeSuccess || s == TradeNoOp || s == TradeExposed
}

// LegStatus is the outcome of one leg.
type LegStatus string

const (
	LegFilled   LegStatus = "filled"
	LegUnfilled LegStatus = "unfilled"
	LegFailed   LegStatus = "failed"
	// LegTimedOut means the leg had not resolved at the join deadline.
	// It keeps running and is reported as a late leg when it resolves.
	LegTimedOut LegStatus = "timed_out"
)

// LegResult is what happened to one order intent.
type LegResult struct {
	Intent   venueDomain.OrderIntent
	Status   LegStatus
	Fill     venueDomain.Fill
	Attempts int
	Latency  time.Duration
	Err      error
}

// Filled reports whether the leg bought any shares.
func (l LegResult) Filled() bool {
	return l.Status == LegFilled
}

// TradeResult is the record of one Execute call.
type TradeResult struct {
	ID          string
	Opportunity Opportunity
	Status      TradeStatus
	LegA        LegResult
	LegB        LegResult

	// RealizedProfit is hedged shares minus total spend, set on success.
	RealizedProfit decimal.Decimal

	StartedAt  time.Time
	FinishedAt time.Time
	Latency    time.Duration

	// Err explains stale, failed and exposed outcomes.
	Err error
}

// Classify derives the trade status from the two legs.
func Classify(a, b LegResult) TradeStatus {
	switch {
	case a.Filled() && b.Filled():
		return TradeSuccess
	case a.Filled() || b.Filled():
		return TradeExposed
	default:
		return TradeNoOp
	}
}

// RealizedProfit is min(sharesA, sharesB) at $1 payout minus what both fills cost.
func RealizedProfit(a, b venueDomain.Fill) decimal.Decimal {
	hedged := decimal.Min(a.Shares, b.Shares)
	return hedged.Sub(a.Cost().Add(b.Cost()))
}

// FilledLeg returns the filled leg of an exposed trade.
func (r TradeResult) FilledLeg() (LegResult, bool) {
	switch {
	case r.LegA.Filled() && !r.LegB.Filled():
		return r.LegA, true
	case r.LegB.Filled() && !r.LegA.Filled():
		return r.LegB, true
	default:
		return LegResult{}, false
	}
}

// LateLeg is a leg that resolved after its trade was already classified.
type LateLeg struct {
	TradeID     string
	Opportunity Opportunity
	Leg         LegResult
}
