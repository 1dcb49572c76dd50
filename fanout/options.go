package fanout

import (
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
)

// Saturation selects what Submit does when every channel queue is full.
type Saturation string

const (
	// SaturationBlock makes Submit wait until a channel has room.
	SaturationBlock Saturation = "block"
	// SaturationDrop rejects the input with a CHANNEL_SATURATED error.
	SaturationDrop Saturation = "drop"
)

// DefaultQueueSize is the per-channel queue capacity.
const DefaultQueueSize = 16

// Config is the file form of the dispatcher options.
type Config struct {
	Channels   int        `yaml:"channels" mapstructure:"channels" validate:"min=1"`
	QueueSize  int        `yaml:"queue_size" mapstructure:"queue_size" validate:"gte=0"`
	Saturation Saturation `yaml:"saturation" mapstructure:"saturation" validate:"omitempty,oneof=block drop"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Saturation == "" {
		c.Saturation = SaturationBlock
	}
}

// Options returns the config as dispatcher options.
func (c Config) Options() []Option {
	return []Option{WithQueueSize(c.QueueSize), WithSaturation(c.Saturation)}
}

type options struct {
	name       string
	queueSize  int
	saturation Saturation
	log        *logger.Logger
	metrics    *observability.PollMetrics
}

// Option configures a Dispatcher.
type Option func(*options)

// WithName names the dispatcher in logs, metrics and errors.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithQueueSize sets the per-channel queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithSaturation sets the saturation policy.
func WithSaturation(s Saturation) Option {
	return func(o *options) {
		if s != "" {
			o.saturation = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records drops and queue depth.
func WithMetrics(m *observability.PollMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		name:       "fanout",
		queueSize:  DefaultQueueSize,
		saturation: SaturationBlock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("fanout")
	}
	return o
}
