// Package sink holds the terminal stages of the poll pipeline.
//
// Every sink is a provider.Sink, so it can be wrapped with
// provider.WithSinkResilience. Console and Log never block on anything
// but their writer; MQTT bounds every publish with a timeout so a
// stalled broker cannot hold up the pipeline.
package sink

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
	"github.com/kbukum/plcstream/provider"
)

// Sink consumes values.
type Sink[T any] = provider.Sink[T]

// FailurePolicy selects what a failed delivery does to the pipeline.
type FailurePolicy string

const (
	// FailureSkip logs and counts the failed value and carries on.
	FailureSkip FailurePolicy = "skip"
	// FailureHalt ends the pipeline with the delivery error.
	FailureHalt FailurePolicy = "halt"
)

// Func adapts a function to Sink.
type Func[T any] func(ctx context.Context, v T) error

// Name implements provider.Provider.
func (f Func[T]) Name() string { return "func" }

// IsAvailable implements provider.Provider.
func (f Func[T]) IsAvailable(context.Context) bool { return true }

// Send calls f.
func (f Func[T]) Send(ctx context.Context, v T) error { return f(ctx, v) }

// Console prints each value on its own line.
type Console[T any] struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console sink writing to w, or stdout if w is nil.
func NewConsole[T any](w io.Writer) *Console[T] {
	if w == nil {
		w = os.Stdout
	}
	return &Console[T]{w: w}
}

// Name implements provider.Provider.
func (c *Console[T]) Name() string { return "console" }

// IsAvailable implements provider.Provider.
func (c *Console[T]) IsAvailable(context.Context) bool { return true }

// Send prints v followed by a newline.
func (c *Console[T]) Send(_ context.Context, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, v)
	return err
}

// Log writes each value through the structured logger at info level.
type Log[T any] struct {
	log *logger.Logger
	msg string
}

// NewLog returns a log sink. msg is the log message of every entry.
func NewLog[T any](l *logger.Logger, msg string) *Log[T] {
	if l == nil {
		l = logger.Get("sink")
	}
	if msg == "" {
		msg = "Value received"
	}
	return &Log[T]{log: l, msg: msg}
}

// Name implements provider.Provider.
func (s *Log[T]) Name() string { return "log" }

// IsAvailable implements provider.Provider.
func (s *Log[T]) IsAvailable(context.Context) bool { return true }

// Send logs v.
func (s *Log[T]) Send(ctx context.Context, v T) error {
	s.log.WithContext(ctx).Info(s.msg, map[string]interface{}{"value": fmt.Sprint(v)})
	return nil
}

// Counting wraps a sink and counts what it delivered and what failed.
type Counting[T any] struct {
	next    Sink[T]
	name    string
	metrics *observability.PollMetrics

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewCounting wraps next. name labels the delivery metrics.
func NewCounting[T any](next Sink[T], name string, metrics *observability.PollMetrics) *Counting[T] {
	return &Counting[T]{next: next, name: name, metrics: metrics}
}

// Name returns the wrapped sink's name.
func (c *Counting[T]) Name() string { return c.next.Name() }

// IsAvailable reports the wrapped sink's availability.
func (c *Counting[T]) IsAvailable(ctx context.Context) bool { return c.next.IsAvailable(ctx) }

// Send forwards v and counts the outcome.
func (c *Counting[T]) Send(ctx context.Context, v T) error {
	if err := c.next.Send(ctx, v); err != nil {
		c.failed.Add(1)
		c.metrics.RecordSinkFailed(ctx, c.name)
		return err
	}
	c.delivered.Add(1)
	c.metrics.RecordDelivered(ctx, c.name)
	return nil
}

// Delivered returns the number of values written successfully.
func (c *Counting[T]) Delivered() uint64 { return c.delivered.Load() }

// Failed returns the number of writes that returned an error.
func (c *Counting[T]) Failed() uint64 { return c.failed.Load() }

type fanout[T any] struct {
	sinks []Sink[T]
}

// Fanout sends every value to each sink in order. A failing sink does not
// keep the value from the others; the failures are joined.
func Fanout[T any](sinks ...Sink[T]) Sink[T] {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &fanout[T]{sinks: sinks}
}

func (f *fanout[T]) Name() string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// IsAvailable is true while any sink can take values.
func (f *fanout[T]) IsAvailable(ctx context.Context) bool {
	for _, s := range f.sinks {
		if s.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

func (f *fanout[T]) Send(ctx context.Context, v T) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}
