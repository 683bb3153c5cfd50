// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/di"
	"github.com/fd1az/prediction-arb/internal/health"
	"github.com/fd1az/prediction-arb/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	// RedisClient is nil unless a component is configured to use Redis.
	RedisClient() redis.UniversalClient
	Health() *health.Server
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	redis     redis.UniversalClient
	health    *health.Server
	container di.Container
}

// Option customises the monolith, mostly for tests.
type Option func(*app)

// WithRedisClient injects a Redis client instead of dialing one.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(a *app) {
		a.redis = c
	}
}

// New creates a new Monolith instance.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hs *health.Server, opts ...Option) (*app, error) {
	a := &app{
		config:    cfg,
		logger:    log,
		health:    hs,
		container: di.NewContainer(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.redis == nil && cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.redis = client
	}

	if a.redis != nil && hs != nil {
		rc := a.redis
		hs.RegisterCheck("redis", func(ctx context.Context) (bool, string) {
			if err := rc.Ping(ctx).Err(); err != nil {
				return false, err.Error()
			}
			return true, "ok"
		})
	}

	a.container.Register("config", cfg)
	a.container.Register("logger", log)
	if a.redis != nil {
		a.container.Register("redis", a.redis)
	}

	return a, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) RedisClient() redis.UniversalClient {
	return a.redis
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
