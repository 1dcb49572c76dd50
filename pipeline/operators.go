package pipeline

import (
	"context"
)

// Map transforms each value using fn.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: p.create(ctx), fn: fn}
		},
	}
}

// TryMap is Map with a per-value error handler. When fn fails, onError
// decides: returning nil drops the value and moves on to the next one,
// returning an error stops the pipeline with it. A nil onError drops.
func TryMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error), onError func(context.Context, I, error) error) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &tryMapIter[I, O]{source: p.create(ctx), fn: fn, onError: onError}
		},
	}
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](p *Pipeline[T], fn func(T) bool) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &filterIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// TryFilter is Filter with a fallible, context-aware predicate. Errors go
// to onError as in TryMap; a value whose predicate failed is never passed
// on.
func TryFilter[T any](p *Pipeline[T], fn func(context.Context, T) (bool, error), onError func(context.Context, T, error) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tryFilterIter[T]{source: p.create(ctx), fn: fn, onError: onError}
		},
	}
}

// Tap calls fn as a side-effect for each value, then passes the value through unchanged.
// Use for logging, metrics, or mid-pipeline publishing.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tapIter[T]{source: p.create(ctx), fn: fn}
		},
	}
}

// --- Iterator implementations ---

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type tryMapIter[I, O any] struct {
	source  Iterator[I]
	fn      func(context.Context, I) (O, error)
	onError func(context.Context, I, error) error
}

func (it *tryMapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			var zero O
			return zero, false, err
		}
		out, err := it.fn(ctx, val)
		if err == nil {
			return out, true, nil
		}
		if it.onError != nil {
			if herr := it.onError(ctx, val, err); herr != nil {
				var zero O
				return zero, false, herr
			}
		}
	}
}

func (it *tryMapIter[I, O]) Close() error { return it.source.Close() }

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tryFilterIter[T any] struct {
	source  Iterator[T]
	fn      func(context.Context, T) (bool, error)
	onError func(context.Context, T, error) error
}

func (it *tryFilterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		keep, err := it.fn(ctx, val)
		if err != nil {
			if it.onError != nil {
				if herr := it.onError(ctx, val, err); herr != nil {
					var zero T
					return zero, false, herr
				}
			}
			continue
		}
		if keep {
			return val, true, nil
		}
	}
}

func (it *tryFilterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }
