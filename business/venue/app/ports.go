// Package app contains application services and port definitions for the venue context.
package app

import (
	"context"

	"github.com/fd1az/prediction-arb/business/venue/domain"
)

// VenueClient is a trading venue's quote and order API.
//
// Errors are *apperror.AppError: VENUE_UNAVAILABLE, RATE_LIMIT_EXCEEDED,
// SERVICE_TIMEOUT, INVALID_RESPONSE, ORDER_REJECTED, INSUFFICIENT_BALANCE
// or CIRCUIT_OPEN.
type VenueClient interface {
	Venue() domain.Venue

	// FetchQuotes returns current best asks for markets matching filter.
	// Returned quotes carry ObservedAt but no freshness deadline.
	FetchQuotes(ctx context.Context, filter domain.MarketFilter) ([]domain.Quote, error)

	// PlaceOrder submits one order. A returned Fill with zero shares means
	// the venue accepted the request but nothing executed.
	PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.Fill, error)
}

// HealthReporter is implemented by clients that track venue availability.
type HealthReporter interface {
	Healthy() bool
}
