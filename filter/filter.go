// Package filter holds record predicates for the poll pipeline.
//
// The range filter has exclusion polarity: a record passes only when its
// first value lies outside the closed interval, and records inside it
// are dropped.
package filter

import (
	"context"
	"fmt"

	"github.com/kbukum/plcstream/decode"
	"github.com/kbukum/plcstream/errors"
)

// Range is a closed integer interval with Low <= High.
type Range struct {
	Low  int64 `yaml:"low" mapstructure:"low"`
	High int64 `yaml:"high" mapstructure:"high"`
}

// Between returns the interval spanned by a and b in either order.
func Between(a, b int64) Range {
	if a > b {
		a, b = b, a
	}
	return Range{Low: a, High: b}
}

// Contains reports whether v lies within the interval, bounds included.
func (r Range) Contains(v int64) bool {
	return v >= r.Low && v <= r.High
}

// String renders the interval as "[50, 60]".
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Low, r.High)
}

// Excludes reports whether rec passes the filter, that is whether its
// first value lies outside the interval. An empty record is an
// INDEX_OUT_OF_RANGE error.
func (r Range) Excludes(rec decode.Record) (bool, error) {
	if len(rec) == 0 {
		return false, errors.IndexOutOfRange(0, 0)
	}
	return !r.Contains(rec[0]), nil
}

// Predicate returns Excludes as a fallible predicate for
// pipeline.TryFilter.
func Predicate(r Range) func(context.Context, decode.Record) (bool, error) {
	return func(_ context.Context, rec decode.Record) (bool, error) {
		return r.Excludes(rec)
	}
}

// ReadingPredicate is Predicate over the values of a decode.Reading.
func ReadingPredicate(r Range) func(context.Context, decode.Reading) (bool, error) {
	return func(_ context.Context, rd decode.Reading) (bool, error) {
		return r.Excludes(rd.Values)
	}
}
