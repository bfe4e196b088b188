package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSpan(t *testing.T) {
	recorder := setupTestTracer(t)

	ctx := WithJob(WithGameID(context.Background(), "game_1"), "old_logs")
	ctx, span := StartSpan(ctx, "test", "store.load")
	span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "store.load", ended[0].Name())

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "game_1", attrs[string(AttrGameID)])
	assert.Equal(t, "old_logs", attrs[string(AttrJob)])
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	setupTestTracer(t)

	ctx := WithTraceID(context.Background(), "fixed")
	ctx, span := StartSpan(ctx, "test", "op")
	defer span.End()

	assert.Equal(t, "fixed", GetTraceID(ctx))
}

func TestFailSpan(t *testing.T) {
	recorder := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "test", "op")
	FailSpan(span, nil)
	FailSpan(span, errors.New("disk full"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "disk full", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
}

func TestInitOpenTelemetry(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	assert.Error(t, InitOpenTelemetry("", 1))

	require.NoError(t, InitOpenTelemetry("questkeep-test", 1))
	require.NoError(t, InitOpenTelemetry("questkeep-test", 1))
	assert.Error(t, InitOpenTelemetry("", 1), "name is checked even with a provider installed")

	_, span := StartSpan(context.Background(), "test", "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, ShutdownOpenTelemetry(context.Background()))
	require.NoError(t, ShutdownOpenTelemetry(context.Background()))
}
