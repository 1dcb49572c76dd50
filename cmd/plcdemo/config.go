package main

import (
	"github.com/kbukum/plcstream/config"
	"github.com/kbukum/plcstream/decode"
	"github.com/kbukum/plcstream/device"
	"github.com/kbukum/plcstream/observability"
	"github.com/kbukum/plcstream/provider"
	"github.com/kbukum/plcstream/resilience"
	"github.com/kbukum/plcstream/scenario"
	"github.com/kbukum/plcstream/sink"
	"github.com/kbukum/plcstream/validation"
	"github.com/kbukum/plcstream/version"
)

// Sink kinds.
const (
	SinkConsole = "console"
	SinkLog     = "log"
	SinkMQTT    = "mqtt"
)

// DecodeConfig selects the decoding rule.
type DecodeConfig struct {
	Mode decode.Mode `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=truncate15 register"`
}

// SinkConfig selects where decoded readings go. Coil values always go to
// the console.
type SinkConfig struct {
	Kind string `yaml:"kind" mapstructure:"kind" validate:"oneof=console log mqtt"`
	// Echo also prints readings on the console when Kind is log or mqtt.
	Echo bool `yaml:"echo" mapstructure:"echo"`
	// Resilience wraps the MQTT sink. It defaults to one retry.
	Resilience provider.ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	MQTT       sink.MQTTConfig           `yaml:"mqtt" mapstructure:"mqtt"`
}

// AppConfig is the plcdemo configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Device        device.Config        `yaml:"device" mapstructure:"device"`
	Decode        DecodeConfig         `yaml:"decode" mapstructure:"decode"`
	Scenarios     scenario.Config      `yaml:"scenarios" mapstructure:"scenarios"`
	Sink          SinkConfig           `yaml:"sink" mapstructure:"sink"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// defaultConfig is loaded over by the config file and environment, so
// scenario flags omitted there keep their defaults.
func defaultConfig() *AppConfig {
	return &AppConfig{
		ServiceConfig: config.ServiceConfig{Name: "plcdemo"},
		Scenarios:     scenario.DefaultConfig(),
	}
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Device.Descriptor == "" {
		c.Device.Descriptor = "modbus:tcp://127.0.0.1:502"
	}
	c.Device.ApplyDefaults()
	if c.Decode.Mode == "" {
		c.Decode.Mode = decode.ModeTruncate15
	}
	c.Scenarios.ApplyDefaults()
	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkConsole
	}
	if c.Sink.Kind == SinkMQTT {
		c.Sink.MQTT.ApplyDefaults()
		if c.Sink.Resilience.IsEmpty() {
			c.Sink.Resilience.Retry = &resilience.RetryConfig{MaxAttempts: 2}
		}
	}
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	v := validation.New().
		Merge("device", validation.Validate(&c.Device)).
		Merge("decode", validation.Validate(&c.Decode)).
		OneOf("sink.kind", c.Sink.Kind, []string{SinkConsole, SinkLog, SinkMQTT}).
		Merge("scenarios", c.Scenarios.Validate()).
		Merge("observability", validation.Validate(&c.Observability))
	if c.Sink.Kind == SinkMQTT {
		v.Merge("sink.mqtt", validation.Validate(&c.Sink.MQTT))
	}
	return v.Validate()
}

// DecodeWarnings flags enabled register scenarios that the truncate15
// rule is unlikely to decode. The rule reads each group as hex text, so
// raw register bytes mostly fail to decode and are dropped.
func (c *AppConfig) DecodeWarnings() []string {
	if c.Decode.Mode != decode.ModeTruncate15 {
		return nil
	}
	var out []string
	for _, it := range []scenario.ItemConfig{
		c.Scenarios.Holding,
		c.Scenarios.Filter.ItemConfig,
		c.Scenarios.Parallel.ItemConfig,
	} {
		if !it.Enabled {
			continue
		}
		if addr, err := device.ParseAddress(it.Address); err == nil && !addr.Class.IsBit() {
			out = append(out, it.Item)
		}
	}
	return out
}
