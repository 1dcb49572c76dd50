// Package decode turns raw register content into integer records.
//
// The default mode reproduces the legacy demo rule exactly: a byte group
// is rendered as space-separated hex pairs, whitespace is removed, the
// first 15 characters are kept and parsed as a base-16 32-bit integer.
// Anything shorter than 15 characters, not hex, or too large for 32 bits
// fails with a DECODE_FAILED error. A single 16-bit register renders to
// only four hex digits, so with one register per group the legacy rule
// always fails; ModeRegister decodes the whole group as a big-endian
// unsigned value instead.
package decode
