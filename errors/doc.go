// Package errors provides the structured error type used across plcstream.
// Every failure carries a machine-readable code, a retryable flag and
// details such as the device address spec, so callers can choose a policy
// (halt, skip, retry) without string matching.
package errors
