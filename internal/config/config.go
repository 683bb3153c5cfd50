// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Venue names used as keys under venues.*.
const (
	VenueLimitless  = "limitless"
	VenuePolymarket = "polymarket"
)

// Guard backends.
const (
	GuardBackendMemory = "memory"
	GuardBackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Arbitrage ArbitrageConfig `mapstructure:"arbitrage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ArbitrageConfig holds detection thresholds and trade sizing.
// Spread, slippage and fee values are fractions: 0.03 means 3%.
type ArbitrageConfig struct {
	MinSpreadPct          float64       `mapstructure:"min_spread_pct"`
	MaxBetAmount          float64       `mapstructure:"max_bet_amount"`
	MaxStrikeDiff         float64       `mapstructure:"max_strike_diff"`
	SlippageTolerance     float64       `mapstructure:"slippage_tolerance"`
	FeeRate               float64       `mapstructure:"fee_rate"`
	MaxLimitPrice         float64       `mapstructure:"max_limit_price"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	MaxExecutionsPerCycle int           `mapstructure:"max_executions_per_cycle"`
}

// MinSpreadDecimal returns the minimum spread as decimal.Decimal.
func (c *ArbitrageConfig) MinSpreadDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinSpreadPct)
}

// MaxBetDecimal returns the per-leg spend cap as decimal.Decimal.
func (c *ArbitrageConfig) MaxBetDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxBetAmount)
}

// MaxStrikeDiffDecimal returns the strike tolerance as decimal.Decimal.
func (c *ArbitrageConfig) MaxStrikeDiffDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxStrikeDiff)
}

// SlippageDecimal returns the per-leg slippage allowance as decimal.Decimal.
func (c *ArbitrageConfig) SlippageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.SlippageTolerance)
}

// FeeRateDecimal returns the fee rate as decimal.Decimal.
func (c *ArbitrageConfig) FeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FeeRate)
}

// MaxLimitPriceDecimal returns the limit price ceiling as decimal.Decimal.
func (c *ArbitrageConfig) MaxLimitPriceDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxLimitPrice)
}

// CacheConfig holds quote cache settings.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MatchingConfig controls how markets on both venues are grouped.
type MatchingConfig struct {
	Underlying     string        `mapstructure:"underlying"`
	StrikeRounding float64       `mapstructure:"strike_rounding"`
	ExpiryBucket   time.Duration `mapstructure:"expiry_bucket"`
}

// ExecutionConfig holds order execution settings.
type ExecutionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// ShutdownTimeout bounds the wait for in-flight legs on stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// DetectOnly reports opportunities without placing orders.
	DetectOnly bool `mapstructure:"detect_only"`
}

// RetryConfig holds per-leg retry settings. MaxAttempts counts the first try.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// VenuesConfig holds per-venue client settings.
type VenuesConfig struct {
	Limitless  VenueConfig `mapstructure:"limitless"`
	Polymarket VenueConfig `mapstructure:"polymarket"`
}

// VenueConfig holds REST client settings for one venue.
type VenueConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	APIKey                string        `mapstructure:"api_key"`
	WalletAddress         string        `mapstructure:"wallet_address"`
	RequestsPerMinute     int           `mapstructure:"requests_per_minute"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	PriceDecimals         int32         `mapstructure:"price_decimals"`
	MaxPages              int           `mapstructure:"max_pages"`
}

// Maker returns the checksummed wallet address, or empty when unset.
func (c *VenueConfig) Maker() string {
	if c.WalletAddress == "" {
		return ""
	}
	return common.HexToAddress(c.WalletAddress).Hex()
}

// GuardConfig selects the in-flight guard implementation.
type GuardConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	JournalKey     string `mapstructure:"journal_key"`
	JournalMaxLen  int64  `mapstructure:"journal_max_len"`
	JournalEnabled bool   `mapstructure:"journal_enabled"`
}

// RedisEnabled reports whether a Redis client is needed.
func (c *Config) RedisEnabled() bool {
	return c.Guard.Backend == GuardBackendRedis || c.Redis.JournalEnabled
}

// KafkaConfig holds trade event publisher settings.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// NotifyConfig holds alert channel settings. Empty values disable a channel.
type NotifyConfig struct {
	TelegramToken     string        `mapstructure:"telegram_token"`
	TelegramChatID    string        `mapstructure:"telegram_chat_id"`
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	TraceProvider  string  `mapstructure:"trace_provider"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	PrometheusPort int     `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Arbitrage
	v.BindEnv("arbitrage.min_spread_pct", "ARB_MIN_SPREAD_PCT", "MIN_SPREAD_PCT")
	v.BindEnv("arbitrage.max_bet_amount", "ARB_MAX_BET_AMOUNT", "MAX_BET_AMOUNT")
	v.BindEnv("arbitrage.max_strike_diff", "ARB_MAX_STRIKE_DIFF", "MAX_STRIKE_DIFF")
	v.BindEnv("arbitrage.slippage_tolerance", "ARB_SLIPPAGE_TOLERANCE", "SLIPPAGE_TOLERANCE")
	v.BindEnv("arbitrage.fee_rate", "ARB_FEE_RATE", "FEE_RATE")
	v.BindEnv("arbitrage.poll_interval", "ARB_POLL_INTERVAL", "POLL_INTERVAL")
	v.BindEnv("arbitrage.max_executions_per_cycle", "ARB_MAX_EXECUTIONS_PER_CYCLE")

	// Cache, execution and retry
	v.BindEnv("cache.ttl", "ARB_CACHE_TTL", "CACHE_TTL")
	v.BindEnv("execution.timeout", "ARB_EXECUTION_TIMEOUT", "EXECUTION_TIMEOUT")
	v.BindEnv("execution.detect_only", "ARB_DETECT_ONLY", "DETECT_ONLY")
	v.BindEnv("retry.max_attempts", "ARB_RETRY_MAX_ATTEMPTS", "MAX_RETRIES")

	// Venues
	v.BindEnv("venues.limitless.base_url", "ARB_LIMITLESS_API_URL", "LIMITLESS_API_URL")
	v.BindEnv("venues.limitless.api_key", "ARB_LIMITLESS_API_KEY", "LIMITLESS_API_KEY")
	v.BindEnv("venues.limitless.wallet_address", "ARB_LIMITLESS_WALLET", "LIMITLESS_WALLET_ADDRESS")
	v.BindEnv("venues.polymarket.base_url", "ARB_POLYMARKET_HOST", "POLYMARKET_HOST")
	v.BindEnv("venues.polymarket.api_key", "ARB_POLYMARKET_API_KEY", "POLYMARKET_API_KEY")
	v.BindEnv("venues.polymarket.wallet_address", "ARB_POLYMARKET_WALLET", "POLYMARKET_FUNDER_ADDRESS")

	// Guard, Redis, Kafka
	v.BindEnv("guard.backend", "ARB_GUARD_BACKEND")
	v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "ARB_KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "ARB_KAFKA_BROKERS", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "ARB_KAFKA_TOPIC")

	// Notify
	v.BindEnv("notify.telegram_token", "ARB_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notify.telegram_chat_id", "ARB_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
	v.BindEnv("notify.discord_webhook_url", "ARB_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "prediction-arb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Arbitrage defaults
	v.SetDefault("arbitrage.min_spread_pct", 0.03)
	v.SetDefault("arbitrage.max_bet_amount", 10)
	v.SetDefault("arbitrage.max_strike_diff", 200)
	v.SetDefault("arbitrage.slippage_tolerance", 0.005)
	v.SetDefault("arbitrage.fee_rate", 0)
	v.SetDefault("arbitrage.max_limit_price", 0.99)
	v.SetDefault("arbitrage.poll_interval", "12s")
	v.SetDefault("arbitrage.max_executions_per_cycle", 3)

	v.SetDefault("cache.ttl", "8s")

	v.SetDefault("matching.underlying", "BTC")
	// Strike stays out of the key; arbitrage.max_strike_diff alone bounds the
	// pair. A positive value splits strikes that straddle a rounding boundary.
	v.SetDefault("matching.strike_rounding", 0)
	v.SetDefault("matching.expiry_bucket", "1h")

	v.SetDefault("execution.timeout", "12s")
	v.SetDefault("execution.shutdown_timeout", "30s")
	v.SetDefault("execution.detect_only", false)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "8s")

	// Venue defaults
	setVenueDefaults(v, VenueLimitless, "https://api.limitless.exchange/api-v1", 3)
	setVenueDefaults(v, VenuePolymarket, "https://clob.polymarket.com", 3)

	v.SetDefault("guard.backend", GuardBackendMemory)
	v.SetDefault("guard.ttl", "30s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.journal_key", "arb:exposures")
	v.SetDefault("redis.journal_max_len", 1000)
	v.SetDefault("redis.journal_enabled", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "arb.trades")

	v.SetDefault("notify.timeout", "5s")

	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "prediction-arb")
	v.SetDefault("telemetry.trace_provider", "console")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.prometheus_port", 9090)
}

func setVenueDefaults(v *viper.Viper, venue, baseURL string, priceDecimals int) {
	prefix := "venues." + venue + "."
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"requests_per_minute", 300)
	v.SetDefault(prefix+"request_timeout", "8s")
	v.SetDefault(prefix+"max_concurrent_requests", 20)
	v.SetDefault(prefix+"price_decimals", priceDecimals)
	v.SetDefault(prefix+"max_pages", 10)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	a := c.Arbitrage
	if a.MinSpreadPct <= 0 || a.MinSpreadPct >= 1 {
		return fmt.Errorf("arbitrage.min_spread_pct must be in (0,1), got %v", a.MinSpreadPct)
	}
	if a.MaxBetAmount <= 0 {
		return fmt.Errorf("arbitrage.max_bet_amount must be positive")
	}
	if a.MaxStrikeDiff < 0 {
		return fmt.Errorf("arbitrage.max_strike_diff cannot be negative")
	}
	if a.SlippageTolerance < 0 || a.FeeRate < 0 {
		return fmt.Errorf("arbitrage.slippage_tolerance and arbitrage.fee_rate cannot be negative")
	}
	if a.MaxLimitPrice <= 0 || a.MaxLimitPrice >= 1 {
		return fmt.Errorf("arbitrage.max_limit_price must be in (0,1), got %v", a.MaxLimitPrice)
	}
	if a.MinSpreadPct <= 2*a.SlippageTolerance+a.FeeRate {
		return fmt.Errorf("arbitrage.min_spread_pct (%v) must exceed 2*slippage_tolerance + fee_rate (%v)",
			a.MinSpreadPct, 2*a.SlippageTolerance+a.FeeRate)
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("arbitrage.poll_interval must be positive")
	}
	if a.MaxExecutionsPerCycle < 1 {
		return fmt.Errorf("arbitrage.max_executions_per_cycle must be at least 1")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Matching.Underlying == "" {
		return fmt.Errorf("matching.underlying is required")
	}
	if c.Matching.StrikeRounding < 0 || c.Matching.ExpiryBucket < 0 {
		return fmt.Errorf("matching.strike_rounding and matching.expiry_bucket cannot be negative")
	}
	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.base_delay must be positive and not exceed retry.max_delay")
	}

	venues := []struct {
		name string
		cfg  VenueConfig
	}{
		{VenueLimitless, c.Venues.Limitless},
		{VenuePolymarket, c.Venues.Polymarket},
	}
	for _, venue := range venues {
		name, vc := venue.name, venue.cfg
		if vc.BaseURL == "" {
			return fmt.Errorf("venues.%s.base_url is required", name)
		}
		if vc.WalletAddress != "" && !common.IsHexAddress(vc.WalletAddress) {
			return fmt.Errorf("invalid venues.%s.wallet_address: %s", name, vc.WalletAddress)
		}
		if vc.PriceDecimals < 0 {
			return fmt.Errorf("venues.%s.price_decimals cannot be negative", name)
		}
	}

	switch c.Guard.Backend {
	case GuardBackendMemory:
	case GuardBackendRedis:
		if c.Guard.TTL <= c.Execution.Timeout {
			return fmt.Errorf("guard.ttl (%s) must exceed execution.timeout (%s)", c.Guard.TTL, c.Execution.Timeout)
		}
	default:
		return fmt.Errorf("unknown guard.backend: %q", c.Guard.Backend)
	}

	if c.RedisEnabled() && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is in use")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		return fmt.Errorf("notify.telegram_token and notify.telegram_chat_id must be set together")
	}
	return nil
}
