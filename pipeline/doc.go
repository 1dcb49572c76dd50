// Package pipeline provides composable, pull-based data pipeline operators.
//
// Pipelines are lazy: no work happens until values are pulled via Drain,
// Collect or Iter. Each stage pulls from the previous one on demand, so a
// slow sink slows the stages in front of it down to the poll loop.
//
// # Operators
//
// Sources:
//
//   - FromSlice: emit a fixed list, mostly for tests
//   - Generate: adapt a push-style producer such as a poll loop
//
// Synchronous (single-goroutine):
//
//   - Map: transform each value
//   - TryMap: transform each value, routing failures to an error handler
//   - Filter: keep values matching a predicate
//   - TryFilter: Filter with a predicate that can fail
//   - Tap: side-effect without altering the value (logging, metrics, publishing)
//
// Concurrent (multi-goroutine):
//
//   - Buffer: decouple producer/consumer with a buffered channel
//   - ParallelBalanced: run values over N channels, least-loaded first
//     (order kept per channel, not across channels)
//
// # Usage
//
//	src := poller.Source()
//	records := pipeline.TryMap(src, decode.Mapper("test1"), reportDecodeError)
//	kept := pipeline.TryFilter(records, filter.Predicate(filter.Between(60, 50)), reportIndexError)
//	pipeline.Drain(kept, console.Send).Run(ctx)
package pipeline
