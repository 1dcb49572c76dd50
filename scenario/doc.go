// Package scenario wires the device client, poller, decoder, filter,
// fan-out and sinks into the four demo pipelines:
//
//   - coil: read coil:0[3] every second and print the booleans
//   - holding: read test1 every 200ms, decode and print
//   - filter: read test2 every second, decode and keep records whose first
//     value lies outside [50, 60]
//   - parallel: read test5 every 100ms and decode on three balanced
//     channels
//
// A Runner runs the enabled scenarios concurrently until its context is
// cancelled or one of them fails.
package scenario
