package bootstrap

import (
	"time"

	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	handleSignals   *bool
	telemetry       *observability.Config
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithSignals controls whether RunTask cancels the task on SIGINT/SIGTERM.
// Enabled by default; tests disable it.
func WithSignals(enabled bool) Option {
	return func(o *appOptions) {
		o.handleSignals = &enabled
	}
}

// WithTelemetry installs the OpenTelemetry providers described by cfg and
// creates App.Metrics. The providers are flushed when the app stops.
// With cfg.Enabled false, Metrics records into the no-op meter.
func WithTelemetry(cfg observability.Config) Option {
	return func(o *appOptions) {
		o.telemetry = &cfg
	}
}
