package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/plcstream/config"
	"github.com/kbukum/plcstream/decode"
	"github.com/kbukum/plcstream/poller"
	"github.com/kbukum/plcstream/sink"
)

func load(t *testing.T, path string) *AppConfig {
	t.Helper()
	cfg := defaultConfig()
	if err := config.LoadConfig("plcdemo", cfg, config.WithConfigFile(path), config.WithEnvPrefix("PLC")); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

func TestShippedConfig(t *testing.T) {
	cfg := load(t, "config.yml")

	if cfg.Device.Descriptor != "modbus:tcp://127.0.0.1:5502" {
		t.Errorf("unexpected descriptor %q", cfg.Device.Descriptor)
	}
	if cfg.Decode.Mode != decode.ModeRegister {
		t.Errorf("expected register mode, got %q", cfg.Decode.Mode)
	}
	if cfg.Scenarios.Holding.Poll.Interval != 200*time.Millisecond {
		t.Errorf("expected 200ms holding interval, got %s", cfg.Scenarios.Holding.Poll.Interval)
	}
	if cfg.Scenarios.Parallel.Poll.OnError != poller.ErrorRetry {
		t.Errorf("expected retry policy, got %q", cfg.Scenarios.Parallel.Poll.OnError)
	}
	if cfg.Scenarios.Parallel.Fanout.Channels != 3 {
		t.Errorf("expected 3 channels, got %d", cfg.Scenarios.Parallel.Fanout.Channels)
	}
	if cfg.Scenarios.Filter.Low != 60 || cfg.Scenarios.Filter.High != 50 {
		t.Errorf("unexpected filter bounds %d, %d", cfg.Scenarios.Filter.Low, cfg.Scenarios.Filter.High)
	}
	if cb := cfg.Device.Resilience.CircuitBreaker; cb == nil || cb.MaxFailures != 5 || cb.Timeout != 10*time.Second {
		t.Errorf("unexpected device breaker %+v", cb)
	}
	if cfg.Scenarios.OnSinkError != sink.FailureSkip {
		t.Errorf("expected skip on sink error, got %q", cfg.Scenarios.OnSinkError)
	}
	if len(cfg.DecodeWarnings()) != 0 {
		t.Errorf("register mode should not warn, got %v", cfg.DecodeWarnings())
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := "name: plcdemo\nscenarios:\n  coil:\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := load(t, path)
	if cfg.Scenarios.Coil.Enabled {
		t.Error("coil should be disabled by the file")
	}
	if !cfg.Scenarios.Holding.Enabled || cfg.Scenarios.Holding.Item != "test1" {
		t.Errorf("holding scenario should keep its defaults, got %+v", cfg.Scenarios.Holding)
	}
	if cfg.Decode.Mode != decode.ModeTruncate15 {
		t.Errorf("expected truncate15 by default, got %q", cfg.Decode.Mode)
	}
	if cfg.Sink.Kind != SinkConsole {
		t.Errorf("expected console sink by default, got %q", cfg.Sink.Kind)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PLC_SINK_KIND", "log")
	t.Setenv("PLC_DEVICE_DESCRIPTOR", "modbus:tcp://10.0.0.7:502")

	cfg := load(t, "config.yml")
	if cfg.Sink.Kind != SinkLog {
		t.Errorf("expected env to select the log sink, got %q", cfg.Sink.Kind)
	}
	if cfg.Device.Descriptor != "modbus:tcp://10.0.0.7:502" {
		t.Errorf("expected env descriptor, got %q", cfg.Device.Descriptor)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{"unknown sink", func(c *AppConfig) { c.Sink.Kind = "kafka" }, "sink.kind"},
		{"unknown decode mode", func(c *AppConfig) { c.Decode.Mode = "float" }, "decode"},
		{"mqtt without broker", func(c *AppConfig) { c.Sink.Kind = SinkMQTT }, "sink.mqtt"},
		{"enabled scenario without address", func(c *AppConfig) { c.Scenarios.Filter.Address = "" }, "scenarios.filter.address"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestDecodeWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   []string
	}{
		{"register mode", func(c *AppConfig) { c.Decode.Mode = decode.ModeRegister }, nil},
		{"truncate15 with register items", func(c *AppConfig) {}, []string{"test1", "test2", "test5"}},
		{"disabled items are ignored", func(c *AppConfig) {
			c.Scenarios.Holding.Enabled = false
			c.Scenarios.Parallel.Enabled = false
		}, []string{"test2"}},
		{"bit class is ignored", func(c *AppConfig) {
			c.Scenarios.Filter.Enabled = false
			c.Scenarios.Parallel.Enabled = false
			c.Scenarios.Holding.Address = "readdiscreteinputs:0[8]"
		}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			cfg.ApplyDefaults()
			got := cfg.DecodeWarnings()
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMQTTSinkRetriesByDefault(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sink.Kind = SinkMQTT
	cfg.ApplyDefaults()
	if r := cfg.Sink.Resilience.Retry; r == nil || r.MaxAttempts != 2 {
		t.Errorf("expected one retry for mqtt, got %+v", r)
	}

	console := defaultConfig()
	console.ApplyDefaults()
	if !console.Sink.Resilience.IsEmpty() {
		t.Errorf("console sink should not be wrapped, got %+v", console.Sink.Resilience)
	}
}
