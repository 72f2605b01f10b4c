package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flowcore/differential/pkg/observability"
)

func TestAttributeFilterAllowsKnownKeys(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), nil)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("error.type", "timeout"),
		attribute.Int("round.index", 7),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := spanAttrMap(spans[0])
	assert.Equal(t, "timeout", attrs["error.type"])
	assert.Equal(t, int64(7), attrs["round.index"])
}

func TestAttributeFilterBlocksPII(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), nil)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("user.email", "alice@example.com"),
		attribute.String("email", "bob@example.com"),
		attribute.String("request.body", "{\"secret\":\"x\"}"),
		attribute.String("response.body", "{\"token\":\"abc\"}"),
		attribute.String("user.id", "12345"),
		attribute.String("error.type", "internal"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := spanAttrMap(spans[0])

	assert.NotContains(t, attrs, "user.email")
	assert.NotContains(t, attrs, "email")
	assert.NotContains(t, attrs, "request.body")
	assert.NotContains(t, attrs, "response.body")
	assert.NotContains(t, attrs, "user.id")

	assert.Equal(t, "internal", attrs["error.type"])
}

func TestAttributeFilterWarnsInDevMode(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("user.secret", "val"),
	)
	span.End()

	assert.Contains(t, buf.String(), "user.secret")
	assert.Contains(t, buf.String(), "blocked")
}

func TestAttributeFilterPassesUnknownAllowedPrefixes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), nil)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("reduceflow.new_attr", "val"),
		attribute.String("engine.op", "reduce"),
		attribute.String("error.source", "client"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := spanAttrMap(spans[0])
	assert.Equal(t, "val", attrs["reduceflow.new_attr"])
	assert.Equal(t, "reduce", attrs["engine.op"])
	assert.Equal(t, "client", attrs["error.source"])
}

// spanAttrMap converts a span's attributes into a map for easy assertion.
func spanAttrMap(s tracetest.SpanStub) map[string]any {
	m := make(map[string]any, len(s.Attributes))
	for _, a := range s.Attributes {
		m[string(a.Key)] = a.Value.AsInterface()
	}

	return m
}
