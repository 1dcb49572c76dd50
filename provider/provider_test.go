package provider_test

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/provider"
	"github.com/kbukum/plcstream/resilience"
)

var errLinkDown = errors.ConnectionFailed("plc", stderrors.New("link down"))

// flakyReader fails the first failUntil calls with errLinkDown.
type flakyReader struct {
	calls     atomic.Int32
	failUntil int32
}

func (r *flakyReader) Name() string                       { return "plc" }
func (r *flakyReader) IsAvailable(_ context.Context) bool { return true }
func (r *flakyReader) Execute(_ context.Context, addr int) (string, error) {
	if r.calls.Add(1) <= r.failUntil {
		return "", errLinkDown
	}
	return "value@" + strconv.Itoa(addr), nil
}

var _ provider.RequestResponse[int, string] = (*flakyReader)(nil)

// flakySink fails the first failUntil sends.
type flakySink struct {
	calls     atomic.Int32
	failUntil int32
	sent      []string
}

func (s *flakySink) Name() string                       { return "broker" }
func (s *flakySink) IsAvailable(_ context.Context) bool { return true }
func (s *flakySink) Send(_ context.Context, v string) error {
	if s.calls.Add(1) <= s.failUntil {
		return errors.Timeout("publish")
	}
	s.sent = append(s.sent, v)
	return nil
}

var _ provider.Sink[string] = (*flakySink)(nil)

func fastRetry(attempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1,
	}
}

func TestWithResilience_EmptyConfigIsPassthrough(t *testing.T) {
	r := &flakyReader{}
	if got := provider.WithResilience[int, string](r, provider.ResilienceConfig{}); got != provider.RequestResponse[int, string](r) {
		t.Fatal("expected the provider itself for an empty config")
	}
	if provider.BuildResilience(provider.ResilienceConfig{}) != nil {
		t.Error("expected nil state for an empty config")
	}
}

func TestWithResilience_Retry(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int32
		wantErr   bool
		wantCalls int32
	}{
		{"recovers", 2, false, 3},
		{"exhausted", 10, true, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &flakyReader{failUntil: tc.failUntil}
			wrapped := provider.WithResilience[int, string](r, provider.ResilienceConfig{Retry: fastRetry(3)})

			got, err := wrapped.Execute(context.Background(), 7)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != "value@7" {
				t.Errorf("got %q", got)
			}
			if r.calls.Load() != tc.wantCalls {
				t.Errorf("calls = %d, want %d", r.calls.Load(), tc.wantCalls)
			}
		})
	}
}

func TestWithResilience_BreakerOpens(t *testing.T) {
	r := &flakyReader{failUntil: 100}
	wrapped := provider.WithResilience[int, string](r, provider.ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{Name: "plc", MaxFailures: 2, Timeout: time.Hour},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := wrapped.Execute(ctx, 0); !errors.IsCode(err, errors.ErrCodeConnectionFailed) {
			t.Fatalf("call %d: expected CONNECTION_FAILED, got %v", i, err)
		}
	}
	_, err := wrapped.Execute(ctx, 0)
	if !errors.IsCode(err, errors.ErrCodeDeviceUnavailable) || !stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected DEVICE_UNAVAILABLE from the open breaker, got %v", err)
	}
	if r.calls.Load() != 2 {
		t.Errorf("open breaker must not reach the provider, calls = %d", r.calls.Load())
	}
	if wrapped.IsAvailable(ctx) {
		t.Error("expected unavailable while open")
	}
}

func TestWithResilienceState_SharesBreaker(t *testing.T) {
	state := provider.BuildResilience(provider.ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{Name: "plc", MaxFailures: 1, Timeout: time.Hour},
	})
	a := provider.WithResilienceState[int, string](&flakyReader{failUntil: 1}, state)
	b := provider.WithResilienceState[int, string](&flakyReader{}, state)

	_, _ = a.Execute(context.Background(), 0)
	if _, err := b.Execute(context.Background(), 0); !errors.IsCode(err, errors.ErrCodeDeviceUnavailable) {
		t.Fatalf("expected the shared breaker to reject b, got %v", err)
	}
	if state.Breaker().State() != resilience.StateOpen {
		t.Errorf("expected open, got %s", state.Breaker().State())
	}
}

func TestWithSinkResilience(t *testing.T) {
	s := &flakySink{failUntil: 1}
	wrapped := provider.WithSinkResilience[string](s, provider.ResilienceConfig{Retry: fastRetry(2)})

	if err := wrapped.Send(context.Background(), "r1"); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(s.sent) != 1 || s.sent[0] != "r1" {
		t.Errorf("sent = %v", s.sent)
	}
	if wrapped.Name() != "broker" {
		t.Errorf("Name = %q", wrapped.Name())
	}
	if same := provider.WithSinkResilience[string](s, provider.ResilienceConfig{}); same != provider.Sink[string](s) {
		t.Error("expected passthrough for an empty config")
	}
}

func TestAdapt(t *testing.T) {
	r := &flakyReader{}
	adapted := provider.Adapt(provider.RequestResponse[int, string](r), "plc:len",
		func(_ context.Context, s string) (int, error) { return strconv.Atoi(s) },
		func(_ string, out string) (int, error) { return len(out), nil },
	)

	n, err := adapted.Execute(context.Background(), "12")
	if err != nil || n != len("value@12") {
		t.Fatalf("got %d, %v", n, err)
	}
	if _, err := adapted.Execute(context.Background(), "x"); err == nil {
		t.Error("expected mapIn error")
	}
	if r.calls.Load() != 1 {
		t.Errorf("mapIn failure must not call inner, calls = %d", r.calls.Load())
	}
	if adapted.Name() != "plc:len" {
		t.Errorf("Name = %q", adapted.Name())
	}
}

// recorder notes the order middlewares run in.
type recorder struct {
	inner provider.RequestResponse[int, string]
	tag   string
	order *[]string
}

func (o *recorder) Name() string                         { return o.inner.Name() }
func (o *recorder) IsAvailable(ctx context.Context) bool { return o.inner.IsAvailable(ctx) }
func (o *recorder) Execute(ctx context.Context, in int) (string, error) {
	*o.order = append(*o.order, o.tag+">")
	out, err := o.inner.Execute(ctx, in)
	*o.order = append(*o.order, "<"+o.tag)
	return out, err
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(tag string) provider.Middleware[int, string] {
		return func(inner provider.RequestResponse[int, string]) provider.RequestResponse[int, string] {
			return &recorder{inner: inner, tag: tag, order: &order}
		}
	}

	wrapped := provider.Chain(mw("a"), mw("b"),
		provider.WithLogging[int, string](logger.Nop()),
		provider.WithTracing[int, string]("plc.read"),
	)(&flakyReader{})
	if _, err := wrapped.Execute(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	want := []string{"a>", "b>", "<b", "<a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	r := &flakyReader{}
	if got := provider.Chain[int, string]()(r); got != provider.RequestResponse[int, string](r) {
		t.Error("empty chain must return the provider unchanged")
	}
}
