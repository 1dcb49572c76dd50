package provider

import "context"

// RequestResponse takes one input and returns one output, e.g. a device
// read.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Sink accepts a value and acknowledges it, e.g. an MQTT publish.
type Sink[I any] interface {
	Provider
	Send(ctx context.Context, input I) error
}
