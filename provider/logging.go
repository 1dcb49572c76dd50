package provider

import (
	"context"
	"time"

	"github.com/kbukum/plcstream/logger"
)

// WithLogging logs every Execute: failures at warn, successes at debug.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &loggingRR[I, O]{inner: inner, log: log}
	}
}

type loggingRR[I, O any] struct {
	inner RequestResponse[I, O]
	log   *logger.Logger
}

func (l *loggingRR[I, O]) Name() string                         { return l.inner.Name() }
func (l *loggingRR[I, O]) IsAvailable(ctx context.Context) bool { return l.inner.IsAvailable(ctx) }

func (l *loggingRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	out, err := l.inner.Execute(ctx, input)

	fields := map[string]interface{}{
		"provider": l.inner.Name(),
		"duration": time.Since(start).String(),
	}
	log := l.log.WithContext(ctx)
	if err != nil && ctx.Err() == nil {
		log.Warn("Provider call failed", logger.MergeWithError(fields, err))
	} else if err == nil {
		log.Debug("Provider call ok", fields)
	}
	return out, err
}
