// Package di contains dependency injection tokens for the venue context.
package di

import (
	"github.com/fd1az/prediction-arb/business/venue/app"
	"github.com/fd1az/prediction-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	QuoteService = di.NewToken[*app.QuoteService]("venue.QuoteService")
	Matcher      = di.NewToken[*app.Matcher]("venue.Matcher")
)

// Private dependency tokens - internal to venue module
var (
	QuoteCache       = di.NewToken[*app.QuoteCache]("venue:quoteCache")
	LimitlessClient  = di.NewToken[app.VenueClient]("venue:limitlessClient")
	PolymarketClient = di.NewToken[app.VenueClient]("venue:polymarketClient")
)

func GetQuoteService(c di.ServiceRegistry) *app.QuoteService {
	return di.GetToken(c, QuoteService)
}

func GetMatcher(c di.ServiceRegistry) *app.Matcher {
	return di.GetToken(c, Matcher)
}

func GetQuoteCache(c di.ServiceRegistry) *app.QuoteCache {
	return di.GetToken(c, QuoteCache)
}

func GetLimitlessClient(c di.ServiceRegistry) app.VenueClient {
	return di.GetToken(c, LimitlessClient)
}

func GetPolymarketClient(c di.ServiceRegistry) app.VenueClient {
	return di.GetToken(c, PolymarketClient)
}
