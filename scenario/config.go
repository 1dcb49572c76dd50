package scenario

import (
	"time"

	"github.com/kbukum/plcstream/fanout"
	"github.com/kbukum/plcstream/poller"
	"github.com/kbukum/plcstream/sink"
	"github.com/kbukum/plcstream/validation"
)

// ItemConfig names one polled item and how often to read it.
type ItemConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Item    string        `yaml:"item" mapstructure:"item"`
	Address string        `yaml:"address" mapstructure:"address"`
	Poll    poller.Config `yaml:"poll" mapstructure:"poll"`
	// Buffer decouples the poll loop from the sink when positive.
	Buffer int `yaml:"buffer" mapstructure:"buffer" validate:"gte=0"`
}

// FilterConfig adds the exclusion bounds. They may be given in any order.
type FilterConfig struct {
	ItemConfig `yaml:",inline" mapstructure:",squash"`
	Low        int64 `yaml:"low" mapstructure:"low"`
	High       int64 `yaml:"high" mapstructure:"high"`
}

// ParallelConfig adds the fan-out settings.
type ParallelConfig struct {
	ItemConfig `yaml:",inline" mapstructure:",squash"`
	Fanout     fanout.Config `yaml:"fanout" mapstructure:"fanout"`
}

// Config holds the four demo scenarios.
type Config struct {
	Coil     ItemConfig     `yaml:"coil" mapstructure:"coil"`
	Holding  ItemConfig     `yaml:"holding" mapstructure:"holding"`
	Filter   FilterConfig   `yaml:"filter" mapstructure:"filter"`
	Parallel ParallelConfig `yaml:"parallel" mapstructure:"parallel"`
	// OnSinkError is what a failed delivery does: skip (log, count and
	// carry on) or halt (stop every scenario).
	OnSinkError sink.FailurePolicy `yaml:"on_sink_error" mapstructure:"on_sink_error"`
}

// DefaultConfig returns the four canonical scenarios, all enabled.
// Load file values on top of it so that omitted keys keep these values.
func DefaultConfig() Config {
	return Config{
		Coil: ItemConfig{
			Enabled: true,
			Item:    "coil",
			Address: "coil:0[3]",
			Poll:    poller.Config{Interval: time.Second},
		},
		Holding: ItemConfig{
			Enabled: true,
			Item:    "test1",
			Address: "readholdingregisters:0[3]",
			Poll:    poller.Config{Interval: 200 * time.Millisecond},
		},
		Filter: FilterConfig{
			ItemConfig: ItemConfig{
				Enabled: true,
				Item:    "test2",
				Address: "readholdingregisters:0[3]",
				Poll:    poller.Config{Interval: time.Second},
			},
			Low:  60,
			High: 50,
		},
		Parallel: ParallelConfig{
			ItemConfig: ItemConfig{
				Enabled: true,
				Item:    "test5",
				Address: "readholdingregisters:0[3]",
				Poll:    poller.Config{Interval: 100 * time.Millisecond},
			},
			Fanout: fanout.Config{Channels: 3},
		},
	}
}

// ApplyDefaults fills unset nested settings. Enabled flags are left alone.
func (c *Config) ApplyDefaults() {
	for _, it := range []*ItemConfig{&c.Coil, &c.Holding, &c.Filter.ItemConfig, &c.Parallel.ItemConfig} {
		it.Poll.ApplyDefaults()
	}
	if c.Coil.Item == "" {
		c.Coil.Item = "coil"
	}
	c.Parallel.Fanout.ApplyDefaults()
	if c.OnSinkError == "" {
		c.OnSinkError = sink.FailureSkip
	}
}

// Validate checks every enabled scenario.
func (c *Config) Validate() error {
	v := validation.New().
		Merge("parallel.fanout", validation.Validate(&c.Parallel.Fanout)).
		OneOf("on_sink_error", string(c.OnSinkError), []string{string(sink.FailureSkip), string(sink.FailureHalt)})
	for _, s := range []struct {
		name string
		it   ItemConfig
	}{
		{"coil", c.Coil},
		{"holding", c.Holding},
		{"filter", c.Filter.ItemConfig},
		{"parallel", c.Parallel.ItemConfig},
	} {
		if !s.it.Enabled {
			continue
		}
		v.Merge(s.name, validation.Validate(&s.it)).
			Required(s.name+".item", s.it.Item).
			Required(s.name+".address", s.it.Address).
			Merge(s.name+".poll", s.it.Poll.Validate())
	}
	return v.Validate()
}
