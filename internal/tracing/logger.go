package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext adds the tracing fields carried by ctx to baseLogger.
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return baseLogger
	}
	tc := FromContext(ctx)

	lc := baseLogger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.GameID != "" {
		lc = lc.Str("game_id", tc.GameID)
	}
	if tc.Job != "" {
		lc = lc.Str("job", tc.Job)
	}
	return lc.Logger()
}

// CloneContext creates a new background context with the same tracing information.
// Used for work that must outlive the caller's cancellation.
func CloneContext(ctx context.Context) context.Context {
	tc := FromContext(ctx)
	out := context.Background()
	if tc.TraceID != "" {
		out = WithTraceID(out, tc.TraceID)
	}
	if tc.GameID != "" {
		out = WithGameID(out, tc.GameID)
	}
	if tc.Job != "" {
		out = WithJob(out, tc.Job)
	}
	return out
}
