// Package logging builds the process logger and the bus subscribers that
// turn request, query and fetch events into structured log lines.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/varigraph/varigraph/internal/eventbus"
	"github.com/varigraph/varigraph/internal/events"
	"github.com/varigraph/varigraph/internal/reqid"
)

// New builds a production zap logger at the given level. Development
// mode switches to the console encoder.
func New(level string, development bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Attach subscribes log handlers for every event the service publishes.
func Attach(log *zap.Logger) {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		log.Info("http request",
			zap.String("request_id", requestID(ctx)),
			zap.String("method", e.Method),
			zap.String("path", e.Path),
			zap.Int("status", e.Status),
			zap.Duration("duration", e.Duration),
		)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
		fields := []zap.Field{
			zap.String("request_id", requestID(ctx)),
			zap.String("operation", e.OperationName),
			zap.Int("errors", e.Errors),
			zap.Duration("duration", e.Duration),
		}
		if e.Errors > 0 {
			log.Warn("query finished with errors", fields...)
			return
		}
		log.Info("query finished", fields...)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		fields := []zap.Field{
			zap.String("request_id", requestID(ctx)),
			zap.String("entity", e.Entity),
			zap.String("field", e.Field),
			zap.Int("keys", e.Keys),
			zap.Duration("duration", e.Duration),
		}
		if e.Err != nil {
			log.Warn("provider fetch failed", append(fields, zap.Error(e.Err))...)
			return
		}
		log.Debug("provider fetch", fields...)
	})
}

func requestID(ctx context.Context) string {
	rid, _ := reqid.FromContext(ctx)
	return rid
}
