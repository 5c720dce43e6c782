// Package logctx carries a zerolog logger through context.Context.
//
// The CLI attaches a logger enriched with run-wide fields (index name,
// run id) and the driver derives per-phase and per-worker loggers from it:
//
//	ctx = logctx.WithStr(ctx, "index", name)
//	log := logctx.FromContext(ctx)
package logctx

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/eunmann/idxbench/pkg/logging"
)

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the global logger from
// package logging when there is none.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return logger
		}
	}
	return *logging.L()
}

// WithStr adds a string field to the context logger.
func WithStr(ctx context.Context, key, value string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Str(key, value).Logger())
}

// WithInt adds an int field to the context logger.
func WithInt(ctx context.Context, key string, value int) context.Context {
	return WithLogger(ctx, FromContext(ctx).With().Int(key, value).Logger())
}

// WithPhase tags the context logger with a benchmark phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	return WithStr(ctx, "phase", phase)
}

// WithWorker tags the context logger with a worker id.
func WithWorker(ctx context.Context, worker int) context.Context {
	return WithInt(ctx, "worker", worker)
}
