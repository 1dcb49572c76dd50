package pipeline

import "context"

// FromSlice emits items in order, then ends.
func FromSlice[T any](items []T) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

type sliceIter[T any] struct {
	items []T
	next  int
}

func (it *sliceIter[T]) Next(context.Context) (T, bool, error) {
	if it.next >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	v := it.items[it.next]
	it.next++
	return v, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

// Generate creates a pipeline from a push-style producer. fn runs on its
// own goroutine once the pipeline is pulled and calls yield for every
// value; yield blocks until the value is taken and returns an error once
// the consumer is gone, at which point fn should return. The pipeline
// ends when fn returns; a non-nil return is passed on as the final error.
func Generate[T any](fn func(ctx context.Context, yield func(T) error) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			genCtx, cancel := context.WithCancel(ctx)
			ch := make(chan result[T])
			done := make(chan struct{})

			yield := func(v T) error {
				select {
				case ch <- result[T]{val: v, ok: true}:
					return nil
				case <-genCtx.Done():
					return genCtx.Err()
				}
			}

			go func() {
				defer close(done)
				defer close(ch)
				if err := fn(genCtx, yield); err != nil && genCtx.Err() == nil {
					select {
					case ch <- result[T]{err: err}:
					case <-genCtx.Done():
					}
				}
			}()

			return &channelIter[T]{
				ch: ch,
				closer: func() error {
					cancel()
					<-done
					return nil
				},
			}
		},
	}
}
