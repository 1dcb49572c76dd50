package pipeline

import "context"

// result carries one value or error across a goroutine boundary.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// channelIter reads results produced by another goroutine.
type channelIter[T any] struct {
	ch     <-chan result[T]
	closer func() error
}

func (it *channelIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case r, open := <-it.ch:
		if !open {
			return zero, false, nil
		}
		return r.val, r.ok, r.err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *channelIter[T]) Close() error {
	if it.closer == nil {
		return nil
	}
	return it.closer()
}

// Buffer pulls from p on its own goroutine and holds up to size values,
// so a slow sink does not hold up the stage in front of it. A poller
// in front of a Buffer keeps its cadence until the buffer fills.
func Buffer[T any](p *Pipeline[T], size int) *Pipeline[T] {
	if size <= 0 {
		size = 1
	}
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			source := p.create(ctx)
			bufCtx, cancel := context.WithCancel(ctx)
			ch := make(chan result[T], size)
			done := make(chan struct{})

			go func() {
				defer close(done)
				defer close(ch)
				for {
					val, ok, err := source.Next(bufCtx)
					if !ok && err == nil {
						return
					}
					select {
					case ch <- result[T]{val: val, ok: ok, err: err}:
					case <-bufCtx.Done():
						return
					}
					if err != nil {
						return
					}
				}
			}()

			return &channelIter[T]{
				ch: ch,
				closer: func() error {
					cancel()
					<-done
					return source.Close()
				},
			}
		},
	}
}
