package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp_grpc"
	OTLPHTTPProvider Provider = "otlp_http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "none"
)

// TraceProvider flushes and stops span export.
type TraceProvider interface {
	Stop(ctx context.Context) error
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop(context.Context) error { return nil }

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

func (o *traceProvider) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second) //nolint:gomnd
	defer cancel()
	return o.tp.Shutdown(ctx)
}

// NewTraceProvider installs the global tracer provider described by cfg.
// Disabled telemetry installs nothing and returns a no-op provider.
func NewTraceProvider(ctx context.Context, cfg config.TelemetryConfig, log logger.LoggerInterface) (TraceProvider, error) {
	if !cfg.Enabled {
		return emptyTraceProvider{}, nil
	}

	provider := Provider(strings.ToLower(cfg.TraceProvider))
	exp, err := newExporter(ctx, provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", provider, err)
	}
	if exp == nil {
		log.Warn(ctx, "tracing enabled without an exporter", "trace_provider", cfg.TraceProvider)
		return emptyTraceProvider{}, nil
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("otel.provider", string(provider)),
		))
	if err != nil {
		rsrc = resource.Default()
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(ctx, "tracing enabled", "trace_provider", string(provider), "endpoint", cfg.OTLPEndpoint)

	return &traceProvider{tp}, nil
}

func newExporter(ctx context.Context, provider Provider, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	headers := parseHeaders(cfg.OTLPHeaders)

	switch provider {
	case ZipkinProvider:
		return zipkin.New(cfg.OTLPEndpoint)
	case OTLPGRPCProvider:
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(cfg.OTLPEndpoint),
			otlptracegrpc.WithHeaders(headers),
		)
	case OTLPHTTPProvider:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
			otlptracehttp.WithHeaders(headers),
		)
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, nil
	}
}

// parseHeaders reads "k1=v1,k2=v2".
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			headers[k] = v
		}
	}
	return headers
}
