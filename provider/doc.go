// Package provider describes the two ways plcstream talks to the outside
// world and the cross-cutting wrappers shared by both.
//
// Interaction patterns:
//   - RequestResponse[I, O]: one request, one reply (a Modbus batch read)
//   - Sink[I]: one value, one acknowledgement (console, log, MQTT publish)
//
// Adapt reshapes a RequestResponse so several call shapes can share one
// backend, e.g. coil reads expressed as one-item batch reads.
//
// # Middleware
//
// Middleware[I, O] wraps a RequestResponse. Chain composes them, first
// outermost:
//
//	reader := provider.Chain(
//	    provider.WithLogging[*device.ReadRequest, *device.ReadResponse](log),
//	    provider.WithTracing[*device.ReadRequest, *device.ReadResponse](observability.SpanRead),
//	)(raw)
//
// # Resilience
//
// WithResilience and WithSinkResilience run calls through a circuit
// breaker and retry built from ResilienceConfig. Nil policies are skipped.
package provider
