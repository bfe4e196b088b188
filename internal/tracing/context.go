package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// GameIDKey is the context key for the game document being operated on
	GameIDKey ContextKey = "game_id"
	// JobKey is the context key for the maintenance job name
	JobKey ContextKey = "job"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID string
	GameID  string
	Job     string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithGameID adds a game id to the context
func WithGameID(ctx context.Context, gameID string) context.Context {
	return context.WithValue(ctx, GameIDKey, gameID)
}

// WithJob adds a maintenance job name to the context
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, JobKey, job)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetGameID retrieves the game id from the context
func GetGameID(ctx context.Context) string {
	if gameID, ok := ctx.Value(GameIDKey).(string); ok {
		return gameID
	}
	return ""
}

// GetJob retrieves the job name from the context
func GetJob(ctx context.Context) string {
	if job, ok := ctx.Value(JobKey).(string); ok {
		return job
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		GameID:  GetGameID(ctx),
		Job:     GetJob(ctx),
	}
}

// NewRequestContext creates a new context for a request with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// NewJobContext creates a context for one run of a maintenance job.
func NewJobContext(ctx context.Context, job string) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithJob(ctx, job)
}
