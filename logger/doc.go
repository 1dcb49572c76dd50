// Package logger provides structured logging for plcstream using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. Poll cycles carry their cycle ID and the
// device address spec as fields so a failed tick can be traced back to
// the request that produced it.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//
// # Usage
//
//	log := logger.Get("poller")
//	log.Warn("decode failed", logger.Fields(logger.FieldAddress, "readholdingregisters:0[3]"))
package logger
