// Package apm wires OpenTelemetry tracing.
package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans wrapped as Span.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

type openTracer struct {
	name string
}

// NewTracer returns a tracer bound to the global provider. The provider is
// resolved per span so one installed after construction is still used.
func NewTracer(name string) Tracer {
	return &openTracer{name: name}
}

func (t *openTracer) StartSpanFromContext(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx, span := otel.Tracer(t.name).Start(ctx, name, opts...)
	return ctx, NewSpan(span)
}

// TraceID returns the active trace id, or empty outside a sampled span.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
