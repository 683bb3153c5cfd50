package apm

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("x-honeycomb-team=abc, api-key=k=v,broken")
	if got["x-honeycomb-team"] != "abc" {
		t.Errorf("x-honeycomb-team = %q, want abc", got["x-honeycomb-team"])
	}
	if got["api-key"] != "k=v" {
		t.Errorf("api-key = %q, want k=v", got["api-key"])
	}
	if _, ok := got["broken"]; ok {
		t.Error("entries without '=' should be skipped")
	}
}

func TestTraceID(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID() = %q outside a span, want empty", id)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if got, want := TraceID(ctx), span.SpanContext().TraceID().String(); got != want {
		t.Errorf("TraceID() = %q, want %q", got, want)
	}
}

func TestTracer_StartSpanFromContext(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
	}{
		{name: "ok", wantStatus: codes.Unset},
		{name: "failed", err: errors.New("venue down"), wantStatus: codes.Error},
	}

	tracer := NewTracer("apm-test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, span := tracer.StartSpanFromContext(context.Background(), tt.name)
			if TraceID(ctx) == "" {
				t.Error("TraceID() empty inside a started span")
			}
			span.SetAttributes(attribute.String("case", tt.name))
			span.NoticeError(tt.err)
			span.End()

			ended := recorder.Ended()
			got := ended[len(ended)-1]
			if got.Name() != tt.name {
				t.Fatalf("span name = %q, want %q", got.Name(), tt.name)
			}
			if got.Status().Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", got.Status().Code, tt.wantStatus)
			}
			if tt.err != nil && len(got.Events()) != 1 {
				t.Errorf("events = %d, want the recorded error", len(got.Events()))
			}
		})
	}
}
