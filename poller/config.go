package poller

import (
	"time"

	"github.com/kbukum/plcstream/resilience"
	"github.com/kbukum/plcstream/validation"
)

// OverlapPolicy selects what happens to ticks that fire during a read.
type OverlapPolicy string

const (
	OverlapSkip  OverlapPolicy = "skip"
	OverlapQueue OverlapPolicy = "queue"
)

// ErrorPolicy selects what a failed read does to the poll loop.
type ErrorPolicy string

const (
	ErrorHalt  ErrorPolicy = "halt"
	ErrorSkip  ErrorPolicy = "skip"
	ErrorRetry ErrorPolicy = "retry"
)

// DefaultInterval is used when Interval is unset.
const DefaultInterval = time.Second

// Config configures a Poller.
type Config struct {
	Interval time.Duration          `yaml:"interval" mapstructure:"interval"`
	Overlap  OverlapPolicy          `yaml:"overlap" mapstructure:"overlap"`
	OnError  ErrorPolicy            `yaml:"on_error" mapstructure:"on_error"`
	Retry    resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Overlap == "" {
		c.Overlap = OverlapSkip
	}
	if c.OnError == "" {
		c.OnError = ErrorHalt
	}
	c.Retry.ApplyDefaults()
}

// Validate checks the policies and interval.
func (c *Config) Validate() error {
	return validation.New().
		Positive("interval", c.Interval).
		OneOf("overlap", string(c.Overlap), []string{string(OverlapSkip), string(OverlapQueue)}).
		OneOf("on_error", string(c.OnError), []string{string(ErrorHalt), string(ErrorSkip), string(ErrorRetry)}).
		Validate()
}
