// Package main is the entry point for the prediction market arbitrage bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/prediction-arb/business/arbitrage"
	arbitrageApp "github.com/fd1az/prediction-arb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/prediction-arb/business/arbitrage/di"
	"github.com/fd1az/prediction-arb/business/venue"
	"github.com/fd1az/prediction-arb/internal/apm"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/health"
	"github.com/fd1az/prediction-arb/internal/logger"
	"github.com/fd1az/prediction-arb/internal/metrics"
	"github.com/fd1az/prediction-arb/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single scan cycle and exit")
	detectOnly := flag.Bool("detect-only", false, "Report opportunities without placing orders")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("prediction-arb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *once, *detectOnly); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, once, detectOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if detectOnly {
		cfg.Execution.DetectOnly = true
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)
	log.Info(ctx, "starting prediction arbitrage bot",
		"version", version,
		"environment", cfg.App.Environment,
		"once", once,
	)

	traceProvider, err := apm.NewTraceProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := traceProvider.Stop(context.Background()); err != nil {
			log.Warn(ctx, "trace provider shutdown", "error", err)
		}
	}()

	metricOpts := []metrics.OptionFn{metrics.WithServiceName(cfg.Telemetry.ServiceName)}
	if cfg.Telemetry.Enabled {
		metricOpts = append(metricOpts, metrics.WithProviderConfig(metrics.NewPrometheusConfig()))
	}
	meterProvider, err := metrics.NewMetricProvider(ctx, metricOpts...)
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() {
		_ = meterProvider.Shutdown(context.Background())
	}()

	serveErrs := make(chan error, 2)
	if cfg.Telemetry.Enabled && !once {
		go func() {
			if err := metrics.ServePrometheusMetrics(ctx, cfg.Telemetry.PrometheusPort); err != nil {
				serveErrs <- err
			}
		}()
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
	}

	var healthServer *health.Server
	if !once {
		healthServer = health.NewServer(cfg.Health.Port, version)
		healthServer.Start(serveErrs)
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = healthServer.Stop(shutdownCtx)
		}()
	}

	mono, err := monolith.New(ctx, cfg, log, healthServer)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&venue.Module{},     // Quote fetching, cache and matching
		&arbitrage.Module{}, // Depends on venue for quotes and order routing
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	scheduler := arbitrageDI.GetScheduler(mono.Services())
	if once {
		return runOnce(ctx, scheduler, log)
	}
	return runLoop(ctx, scheduler, serveErrs, log)
}

func runOnce(ctx context.Context, scheduler *arbitrageApp.Scheduler, log logger.LoggerInterface) error {
	report, err := scheduler.RunOnce(ctx)
	if apperror.HasCode(err, apperror.CodeInvariantViolation) {
		return fmt.Errorf("scan cycle: %w", err)
	}
	if err != nil {
		log.Warn(ctx, "scan cycle finished with venue errors", "error", err)
	}
	log.Info(ctx, "scan cycle finished",
		"pairs", report.Pairs,
		"opportunities", report.Opportunities,
		"trades", len(report.Trades),
		"duration", report.Duration)
	return nil
}

func runLoop(ctx context.Context, scheduler *arbitrageApp.Scheduler, serveErrs <-chan error, log logger.LoggerInterface) error {
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info(ctx, "all modules started, scanning for arbitrage")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutdown signal received")
	case <-scheduler.Done():
	case runErr = <-serveErrs:
		log.Error(ctx, "server failed", "error", runErr)
	}

	scheduler.Stop()
	<-scheduler.Done()
	return runErr
}
