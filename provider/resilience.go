package provider

import (
	"github.com/kbukum/plcstream/resilience"
)

// ResilienceConfig bundles the optional policies wrapped around a
// provider. Nil fields are skipped; the zero value is a passthrough.
type ResilienceConfig struct {
	// CircuitBreaker fails fast after repeated failures.
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	// Retry retries failed calls with exponential backoff.
	Retry *resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// IsEmpty reports whether no policy is configured.
func (c ResilienceConfig) IsEmpty() bool {
	return c.CircuitBreaker == nil && c.Retry == nil
}

// ResilienceState holds the primitives built from a ResilienceConfig.
// Wrappers built from the same state share one breaker.
type ResilienceState struct {
	cb       *resilience.CircuitBreaker
	retryCfg *resilience.RetryConfig
}

// BuildResilience creates the primitives for cfg, or nil when cfg is empty.
func BuildResilience(cfg ResilienceConfig) *ResilienceState {
	if cfg.IsEmpty() {
		return nil
	}
	s := &ResilienceState{}
	if cfg.Retry != nil {
		retry := *cfg.Retry
		retry.ApplyDefaults()
		s.retryCfg = &retry
	}
	if cfg.CircuitBreaker != nil {
		s.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	return s
}

// Breaker returns the circuit breaker, or nil if none is configured.
func (s *ResilienceState) Breaker() *resilience.CircuitBreaker {
	if s == nil {
		return nil
	}
	return s.cb
}
