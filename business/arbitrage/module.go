// Package arbitrage implements the arbitrage bounded context: opportunity
// detection, paired execution and the scan loop.
package arbitrage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/prediction-arb/business/arbitrage/di"
	"github.com/fd1az/prediction-arb/business/arbitrage/infra"
	"github.com/fd1az/prediction-arb/business/arbitrage/infra/events"
	"github.com/fd1az/prediction-arb/business/arbitrage/infra/notify"
	"github.com/fd1az/prediction-arb/business/arbitrage/infra/redisstore"
	venueDI "github.com/fd1az/prediction-arb/business/venue/di"
	venueDomain "github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/di"
	"github.com/fd1az/prediction-arb/internal/logger"
	"github.com/fd1az/prediction-arb/internal/monolith"
)

// Module implements the arbitrage bounded context. It depends on the venue module.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		return app.NewDetector(app.DetectorConfig{
			MinSpread: cfg.Arbitrage.MinSpreadDecimal(),
			Slippage:  cfg.Arbitrage.SlippageDecimal(),
			FeeRate:   cfg.Arbitrage.FeeRateDecimal(),
		}, time.Now)
	})

	di.RegisterToken(c, arbitrageDI.Statistics, func(sr di.ServiceRegistry) *app.Statistics {
		stats, err := app.NewStatistics(time.Now)
		if err != nil {
			panic("failed to create statistics: " + err.Error())
		}
		return stats
	})

	di.RegisterToken(c, arbitrageDI.Guard, func(sr di.ServiceRegistry) app.Guard {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Guard.Backend == config.GuardBackendRedis {
			return redisstore.NewGuard(redisClient(sr), cfg.Guard.TTL)
		}
		return app.NewMemoryGuard()
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		reporters := app.MultiReporter{infra.NewConsoleReporter(nil)}

		var senders []notify.Sender
		if cfg.Notify.TelegramToken != "" {
			s, err := notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, cfg.Notify.Timeout)
			if err != nil {
				panic("failed to create telegram sender: " + err.Error())
			}
			senders = append(senders, s)
		}
		if cfg.Notify.DiscordWebhookURL != "" {
			s, err := notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, cfg.Notify.Timeout)
			if err != nil {
				panic("failed to create discord sender: " + err.Error())
			}
			senders = append(senders, s)
		}
		if len(senders) > 0 {
			reporters = append(reporters, notify.NewNotifier(log, senders...))
		}

		if cfg.Redis.JournalEnabled {
			reporters = append(reporters, redisstore.NewJournal(redisClient(sr), cfg.Redis.JournalKey, cfg.Redis.JournalMaxLen, log))
		}

		if cfg.Kafka.Enabled {
			w := events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
			reporters = append(reporters, events.NewTradePublisher(w, log))
		}

		return reporters
	})

	di.RegisterToken(c, arbitrageDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		execCfg := app.ExecutorConfig{
			Sizing: app.SizingConfig{
				MaxBet:        cfg.Arbitrage.MaxBetDecimal(),
				Slippage:      cfg.Arbitrage.SlippageDecimal(),
				MaxLimitPrice: cfg.Arbitrage.MaxLimitPriceDecimal(),
				PriceDecimals: map[venueDomain.Venue]int32{
					venueDomain.VenueLimitless:  cfg.Venues.Limitless.PriceDecimals,
					venueDomain.VenuePolymarket: cfg.Venues.Polymarket.PriceDecimals,
				},
			},
			Retry: app.RetryConfig{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
			},
			Timeout: cfg.Execution.Timeout,
		}
		return app.NewExecutor(
			execCfg,
			venueDI.GetQuoteService(sr),
			arbitrageDI.GetDetector(sr),
			arbitrageDI.GetGuard(sr),
			arbitrageDI.GetReporter(sr),
			arbitrageDI.GetStatistics(sr),
			log,
		)
	})

	di.RegisterToken(c, arbitrageDI.Scheduler, func(sr di.ServiceRegistry) *app.Scheduler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		maxExec := cfg.Arbitrage.MaxExecutionsPerCycle
		if cfg.Execution.DetectOnly {
			maxExec = 0
		}
		return app.NewScheduler(
			app.SchedulerConfig{
				PollInterval:          cfg.Arbitrage.PollInterval,
				MaxExecutionsPerCycle: maxExec,
				ShutdownTimeout:       cfg.Execution.ShutdownTimeout,
			},
			venueDI.GetQuoteService(sr),
			venueDI.GetMatcher(sr),
			arbitrageDI.GetDetector(sr),
			arbitrageDI.GetExecutor(sr),
			arbitrageDI.GetReporter(sr),
			arbitrageDI.GetStatistics(sr),
			log,
		)
	})

	return nil
}

// Startup resolves the scheduler and exposes its statistics. The scan loop
// itself is started by the caller.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()
	cfg := mono.Config()

	scheduler := arbitrageDI.GetScheduler(sr)

	if hs := mono.Health(); hs != nil {
		hs.SetStats(func() any { return scheduler.Stats() })
		hs.RegisterCheck("scheduler", func(context.Context) (bool, string) {
			state := scheduler.State()
			return state < app.StateShuttingDown, state.String()
		})
		if g, ok := arbitrageDI.GetGuard(sr).(*redisstore.Guard); ok {
			hs.RegisterCheck("guard", func(ctx context.Context) (bool, string) {
				if err := g.Ping(ctx); err != nil {
					return false, err.Error()
				}
				return true, "ok"
			})
		}
	}

	log.Info(ctx, "arbitrage module started",
		"min_spread", cfg.Arbitrage.MinSpreadPct,
		"max_bet", cfg.Arbitrage.MaxBetAmount,
		"poll_interval", cfg.Arbitrage.PollInterval,
		"guard", cfg.Guard.Backend,
		"detect_only", cfg.Execution.DetectOnly)
	return nil
}

func redisClient(sr di.ServiceRegistry) redis.UniversalClient {
	if !sr.Has("redis") {
		panic("redis client not configured")
	}
	return sr.Get("redis").(redis.UniversalClient)
}
