package pipeline

import (
	"context"

	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/fanout"
)

// ParallelBalanced runs each value through one of n parallel channels,
// picking the least-loaded channel for every value. build creates the
// stage of each channel. Results from all channels are merged as they
// complete: order is kept per channel but not across channels. A stage
// error arrives as a Result with Err set and does not end the pipeline.
//
// With the drop saturation option, values rejected because every channel
// is full are skipped.
func ParallelBalanced[I, O any](p *Pipeline[I], n int, build func(channel int) fanout.Stage[I, O], opts ...fanout.Option) *Pipeline[fanout.Result[O]] {
	return &Pipeline[fanout.Result[O]]{
		create: func(ctx context.Context) Iterator[fanout.Result[O]] {
			d, err := fanout.New(n, build, opts...)
			if err != nil {
				return &errIter[fanout.Result[O]]{err: err}
			}

			source := p.create(ctx)
			feedCtx, cancel := context.WithCancel(ctx)
			errCh := make(chan error, 1)
			fed := make(chan struct{})

			go func() {
				defer close(fed)
				defer d.Shutdown()
				for {
					val, ok, err := source.Next(feedCtx)
					if err != nil {
						if feedCtx.Err() == nil {
							errCh <- err
						}
						return
					}
					if !ok {
						return
					}
					if err := d.Submit(feedCtx, val); err != nil {
						if errors.IsCode(err, errors.ErrCodeSaturated) {
							continue
						}
						return
					}
				}
			}()

			return &balancedIter[O]{
				results: d.Results(),
				errCh:   errCh,
				closer: func() error {
					cancel()
					<-fed
					_ = d.Close()
					return source.Close()
				},
			}
		},
	}
}

type balancedIter[O any] struct {
	results <-chan fanout.Result[O]
	errCh   <-chan error
	closer  func() error
}

func (it *balancedIter[O]) Next(ctx context.Context) (fanout.Result[O], bool, error) {
	select {
	case r, open := <-it.results:
		if open {
			return r, true, nil
		}
		select {
		case err := <-it.errCh:
			return fanout.Result[O]{}, false, err
		default:
			return fanout.Result[O]{}, false, nil
		}
	case <-ctx.Done():
		return fanout.Result[O]{}, false, ctx.Err()
	}
}

func (it *balancedIter[O]) Close() error { return it.closer() }

type errIter[T any] struct{ err error }

func (it *errIter[T]) Next(context.Context) (T, bool, error) {
	var zero T
	return zero, false, it.err
}

func (it *errIter[T]) Close() error { return nil }
