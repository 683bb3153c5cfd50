// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	venueApp "github.com/fd1az/prediction-arb/business/venue/app"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
)

// Reporter receives opportunities and trade outcomes for display, alerting
// or publishing. Report methods must not block the caller for long.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportOpportunity is called for every ranked opportunity of a cycle.
	ReportOpportunity(ctx context.Context, opp domain.Opportunity)

	// ReportTrade is called once per Execute call with its final result.
	ReportTrade(ctx context.Context, res domain.TradeResult)

	// ReportLateLeg is called when a timed out leg finally resolves.
	ReportLateLeg(ctx context.Context, late domain.LateLeg)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// Guard is the in-flight lock keyed by match key and direction.
type Guard interface {
	// Acquire returns false when the key is already held.
	Acquire(ctx context.Context, key string) (bool, error)

	// Release frees a held key. Releasing a key that is not held is an
	// INVARIANT_VIOLATION.
	Release(ctx context.Context, key string) error
}

// VenueGateway re-reads quotes and routes orders to venue clients.
type VenueGateway interface {
	Lookup(ctx context.Context, venue venueDomain.Venue, marketID string) (venueDomain.Quote, bool, error)
	Client(venue venueDomain.Venue) (venueApp.VenueClient, bool)
}

// QuoteRefresher pulls fresh quotes from both venues into the cache.
type QuoteRefresher interface {
	Refresh(ctx context.Context) venueApp.Snapshot
	Sweep() int
}

// PairMatcher groups quotes from both venues by event.
type PairMatcher interface {
	Match(quotesA, quotesB []venueDomain.Quote) []venueDomain.MatchedPair
}

var (
	_ VenueGateway   = (*venueApp.QuoteService)(nil)
	_ QuoteRefresher = (*venueApp.QuoteService)(nil)
	_ PairMatcher    = (*venueApp.Matcher)(nil)
)
