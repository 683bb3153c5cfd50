// Package venue implements the venue bounded context: quote fetching,
// caching and cross-venue market matching.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/venue/app"
	venueDI "github.com/fd1az/prediction-arb/business/venue/di"
	"github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/business/venue/infra/limitless"
	"github.com/fd1az/prediction-arb/business/venue/infra/polymarket"
	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/di"
	"github.com/fd1az/prediction-arb/internal/logger"
	"github.com/fd1az/prediction-arb/internal/monolith"
)

// Module implements the venue bounded context.
type Module struct{}

// RegisterServices registers all venue services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, venueDI.QuoteCache, func(sr di.ServiceRegistry) *app.QuoteCache {
		cfg := sr.Get("config").(*config.Config)
		return app.NewQuoteCache(cfg.Cache.TTL, time.Now)
	})

	di.RegisterToken(c, venueDI.LimitlessClient, func(sr di.ServiceRegistry) app.VenueClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client, err := limitless.NewClient(cfg.Venues.Limitless, log)
		if err != nil {
			panic("failed to create limitless client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, venueDI.PolymarketClient, func(sr di.ServiceRegistry) app.VenueClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client, err := polymarket.NewClient(cfg.Venues.Polymarket, log)
		if err != nil {
			panic("failed to create polymarket client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, venueDI.Matcher, func(sr di.ServiceRegistry) *app.Matcher {
		cfg := sr.Get("config").(*config.Config)
		policy := domain.KeyPolicy{
			StrikeRounding: decimal.NewFromFloat(cfg.Matching.StrikeRounding),
			ExpiryBucket:   cfg.Matching.ExpiryBucket,
		}
		return app.NewMatcher(policy, cfg.Arbitrage.MaxStrikeDiffDecimal(), time.Now)
	})

	// Venue A is Limitless, venue B is Polymarket.
	di.RegisterToken(c, venueDI.QuoteService, func(sr di.ServiceRegistry) *app.QuoteService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := app.NewQuoteService(
			venueDI.GetLimitlessClient(sr),
			venueDI.GetPolymarketClient(sr),
			venueDI.GetQuoteCache(sr),
			cfg.Matching.Underlying,
			log,
		)
		if err != nil {
			panic("failed to create quote service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup registers venue health checks.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	if hs := mono.Health(); hs != nil {
		for _, client := range []app.VenueClient{
			venueDI.GetLimitlessClient(sr),
			venueDI.GetPolymarketClient(sr),
		} {
			reporter, ok := client.(app.HealthReporter)
			if !ok {
				continue
			}
			hs.RegisterCheck(string(client.Venue()), func(context.Context) (bool, string) {
				if reporter.Healthy() {
					return true, "ok"
				}
				return false, "circuit open"
			})
		}
	}

	svc := venueDI.GetQuoteService(sr)
	log.Info(ctx, "venue module started",
		"venue_a", svc.VenueA().Venue(),
		"venue_b", svc.VenueB().Venue(),
		"underlying", mono.Config().Matching.Underlying)
	return nil
}
