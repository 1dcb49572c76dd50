// Package component defines the lifecycle contract shared by plcstream's
// long-lived parts: device connections, sinks, and pollers.
//
// A Registry starts components in registration order and stops them in
// reverse, so register a device before the sinks and pollers that use it.
package component
