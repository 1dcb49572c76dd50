package pipeline

import (
	"context"
	"errors"
)

// Iterator is a pull-based stream. Next returns (zero, false, nil) once
// the stream is exhausted.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	Close() error
}

// Pipeline is a lazy stream description. Nothing runs until a terminal
// (Drain, Collect or Iter) pulls from it, and every pull starts a fresh
// run of the stages.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Runnable is a pipeline bound to its sink.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run pulls until the stream ends, a stage or the sink fails, or ctx is
// cancelled. Cancellation is a clean stop and returns nil.
func (r *Runnable) Run(ctx context.Context) error {
	err := r.run(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Drain binds p to sink. sink sees every value exactly once, in stream
// order, on the goroutine that calls Run.
func Drain[T any](p *Pipeline[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			iter := p.create(ctx)
			defer iter.Close()
			for {
				val, ok, err := iter.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := sink(ctx, val); err != nil {
					return err
				}
			}
		},
	}
}

// Collect runs a finite pipeline and returns what it produced, including
// the values pulled before an error.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	var out []T
	err := Drain(p, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	}).run(ctx)
	return out, err
}

// Iter starts a run and hands back its iterator. The caller must Close it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] {
	return p.create(ctx)
}
