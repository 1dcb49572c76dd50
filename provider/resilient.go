package provider

import (
	"context"

	"github.com/kbukum/plcstream/resilience"
)

// WithResilience wraps p so every Execute runs through the breaker and
// retry of cfg. An empty cfg returns p unchanged.
func WithResilience[I, O any](p RequestResponse[I, O], cfg ResilienceConfig) RequestResponse[I, O] {
	return WithResilienceState(p, BuildResilience(cfg))
}

// WithResilienceState is WithResilience over already built primitives,
// so several providers can share one breaker.
func WithResilienceState[I, O any](p RequestResponse[I, O], state *ResilienceState) RequestResponse[I, O] {
	if state == nil {
		return p
	}
	return &resilientRR[I, O]{inner: p, state: state}
}

// WithSinkResilience wraps s so every Send runs through the breaker and
// retry of cfg. An empty cfg returns s unchanged.
func WithSinkResilience[I any](s Sink[I], cfg ResilienceConfig) Sink[I] {
	if cfg.IsEmpty() {
		return s
	}
	return &resilientSink[I]{inner: s, state: BuildResilience(cfg)}
}

type resilientRR[I, O any] struct {
	inner RequestResponse[I, O]
	state *ResilienceState
}

func (r *resilientRR[I, O]) Name() string { return r.inner.Name() }

// IsAvailable is false while the breaker is open.
func (r *resilientRR[I, O]) IsAvailable(ctx context.Context) bool {
	return r.state.available() && r.inner.IsAvailable(ctx)
}

func (r *resilientRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return ExecuteWithResilience(ctx, r.state, func() (O, error) {
		return r.inner.Execute(ctx, input)
	})
}

type resilientSink[I any] struct {
	inner Sink[I]
	state *ResilienceState
}

func (r *resilientSink[I]) Name() string { return r.inner.Name() }

func (r *resilientSink[I]) IsAvailable(ctx context.Context) bool {
	return r.state.available() && r.inner.IsAvailable(ctx)
}

func (r *resilientSink[I]) Send(ctx context.Context, input I) error {
	_, err := ExecuteWithResilience(ctx, r.state, func() (struct{}, error) {
		return struct{}{}, r.inner.Send(ctx, input)
	})
	return err
}

func (s *ResilienceState) available() bool {
	return s.Breaker() == nil || s.cb.State() != resilience.StateOpen
}

// ExecuteWithResilience runs fn as CircuitBreaker -> Retry -> fn. An
// exhausted retry counts as one breaker failure. While the breaker is
// open fn is not called and a DEVICE_UNAVAILABLE error is returned.
func ExecuteWithResilience[T any](ctx context.Context, s *ResilienceState, fn func() (T, error)) (T, error) {
	if s == nil {
		return fn()
	}

	call := fn
	if s.retryCfg != nil {
		retryCfg := *s.retryCfg
		call = func() (T, error) {
			return resilience.Retry(ctx, retryCfg, fn)
		}
	}

	if s.cb == nil {
		return call()
	}
	var result T
	err := s.cb.Execute(func() error {
		var callErr error
		result, callErr = call()
		return callErr
	})
	return result, err
}
