// Package poller drives a read operation on a fixed period.
//
// A Poller reads once at start and then on every tick of a single
// time.Ticker. Reads run synchronously on the poll goroutine, so two
// reads never overlap. When a read (plus delivery of its result) takes
// longer than the interval, the overlap policy decides what happens to
// the ticks that fired meanwhile:
//
//   - skip (default): they are dropped and counted
//   - queue: one catch-up read runs immediately, the rest are dropped
//
// The error policy decides what a failed read does to the loop:
//
//   - halt (default): log the failure with the address and return it
//   - skip: log it and wait for the next tick
//   - retry: retry with exponential backoff, then halt
//
// Run returns nil when its context is cancelled.
package poller
