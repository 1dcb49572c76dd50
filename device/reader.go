package device

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/plcstream/component"
	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
	"github.com/kbukum/plcstream/provider"
	"github.com/kbukum/plcstream/resilience"
)

// Reader is a device batch read as a provider. Everything the pollers
// read goes through one Reader per device, so all reads share its
// circuit breaker.
type Reader = provider.RequestResponse[*ReadRequest, *ReadResponse]

type clientReader struct {
	name   string
	client Client
}

func (r *clientReader) Name() string { return r.name }

// IsAvailable is false only while the client reports itself unhealthy.
func (r *clientReader) IsAvailable(ctx context.Context) bool {
	if hc, ok := r.client.(interface {
		Health(context.Context) component.Health
	}); ok {
		return hc.Health(ctx).Status != component.StatusUnhealthy
	}
	return true
}

func (r *clientReader) Execute(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	return r.client.Read(ctx, req)
}

// NewReader exposes the batch reads of c as a Reader named name, logged,
// traced and guarded by res. A breaker in res gets name as its name and
// logs its state changes; cancellation never counts against it.
func NewReader(name string, c Client, res provider.ResilienceConfig, log *logger.Logger) Reader {
	if log == nil {
		log = logger.Get("device")
	}
	log = log.WithFields(map[string]interface{}{logger.FieldDevice: name})

	if res.CircuitBreaker != nil {
		breaker := *res.CircuitBreaker
		if breaker.Name == "" {
			breaker.Name = name
		}
		if breaker.IsFailure == nil {
			breaker.IsFailure = func(err error) bool {
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
					return false
				}
				return resilience.DefaultIsFailure(err)
			}
		}
		breaker.OnStateChange = func(_ string, from, to resilience.State) {
			log.Warn("Device circuit breaker changed state", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		}
		res.CircuitBreaker = &breaker
	}

	var r Reader = &clientReader{name: name, client: c}
	r = provider.WithResilience(r, res)
	return provider.Chain(
		provider.WithLogging[*ReadRequest, *ReadResponse](log),
		provider.WithTracing[*ReadRequest, *ReadResponse](observability.SpanRead),
	)(r)
}

// BooleanListSupplier returns a read operation for a coil or discrete
// range, checked once up front. The range is read as a one-item batch
// through r.
func BooleanListSupplier(r Reader, spec string) (func(context.Context) ([]bool, error), error) {
	addr, err := ParseAddress(spec)
	if err != nil {
		return nil, err
	}
	if !addr.Class.IsBit() {
		return nil, errors.InvalidAddress(spec, "boolean reads need a coil or discrete class")
	}
	req, err := NewRequestBuilder().AddItem(spec, spec).Build()
	if err != nil {
		return nil, err
	}
	bools := provider.Adapt(r, r.Name()+":"+spec,
		func(context.Context, string) (*ReadRequest, error) { return req, nil },
		func(item string, resp *ReadResponse) ([]bool, error) { return resp.Bools(item) },
	)
	return func(ctx context.Context) ([]bool, error) {
		return bools.Execute(ctx, spec)
	}, nil
}

// BatchSupplier returns a read operation for req.
func BatchSupplier(r Reader, req *ReadRequest) func(context.Context) (*ReadResponse, error) {
	return func(ctx context.Context) (*ReadResponse, error) {
		return r.Execute(ctx, req)
	}
}
