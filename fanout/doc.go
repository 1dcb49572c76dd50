// Package fanout distributes work over a fixed set of parallel channels.
//
// A Dispatcher owns N channels, each with a bounded FIFO queue and one
// goroutine running that channel's Stage. Submit assigns every input to
// the least-loaded channel (queued plus in-flight, ties to the lowest
// index), so a slow channel stops receiving work until it catches up.
// Results from all channels are merged onto one output channel; order
// is kept within a channel but not across channels.
//
// When every queue is full, the saturation policy decides: "block"
// makes Submit wait for room (backpressure), "drop" rejects the input
// with a CHANNEL_SATURATED error and a warning log.
//
// A Stage error does not stop its channel. It is delivered as a Result
// with Err set and the channel moves on to its next input.
package fanout
