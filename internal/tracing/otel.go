package tracing

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys taken from the context by StartSpan.
const (
	AttrGameID = attribute.Key("questkeep.game_id")
	AttrJob    = attribute.Key("questkeep.job")
)

var (
	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
)

// InitOpenTelemetry installs a process-wide tracer provider sampling ratio of
// root traces. Later calls are no-ops until ShutdownOpenTelemetry.
func InitOpenTelemetry(serviceName string, ratio float64) error {
	if serviceName == "" {
		return errors.New("tracing: service name is required")
	}

	providerMu.Lock()
	defer providerMu.Unlock()

	if provider != nil {
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// ShutdownOpenTelemetry flushes and shuts down the provider installed by
// InitOpenTelemetry.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	provider = nil
	providerMu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span and copies its trace id into the context so
// LoggerFromContext picks it up. A game id already in ctx is added as an
// attribute.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := GetGameID(ctx); id != "" {
		attrs = append(attrs, AttrGameID.String(id))
	}
	if job := GetJob(ctx); job != "" {
		attrs = append(attrs, AttrJob.String(job))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if sc := span.SpanContext(); sc.IsValid() && GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx, span
}

// FailSpan marks span as failed with err. A nil err is ignored.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
