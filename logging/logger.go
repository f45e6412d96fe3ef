// Package logging provides the structured, context-aware logger shared by
// every Thorium component (scaler, event handler, search-streamer, reactor,
// agent), built on zerolog the way the rest of the corpus's production
// services do.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds a zerolog.Logger for one component, writing JSON to stdout by
// default or a colorized console writer when pretty is requested for local
// development. An unparsable level falls back to info.
func New(component string, level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// WithContext attaches l to ctx so downstream calls can recover it via
// FromContext without threading a logger through every function signature.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext recovers the logger attached by WithContext, or a bare
// timestamped logger if none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// WithFields returns ctx carrying a logger with fields merged on top of
// whatever logger was already attached: used by the scaler/event-handler/
// search-streamer loops to stamp every line in one tick or batch with a
// tick id, event type, or scaler kind without re-deriving the base logger.
func WithFields(ctx context.Context, fields map[string]string) context.Context {
	l := FromContext(ctx).With().Fields(toAnyMap(fields)).Logger()
	return WithContext(ctx, l)
}

func toAnyMap(fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
