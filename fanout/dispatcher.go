package fanout

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
)

// Stage is the work one channel performs on each input.
type Stage[I, O any] func(ctx context.Context, in I) (O, error)

// Result is the outcome of one input on one channel. Seq is the
// dispatcher-wide submission order, starting at 1.
type Result[O any] struct {
	Channel int
	Seq     uint64
	Value   O
	Err     error
}

type job[I any] struct {
	seq  uint64
	in   I
	span trace.SpanContext
}

type lane[I any] struct {
	queue chan job[I]
	load  int // queued + in flight, guarded by Dispatcher.mu

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// Dispatcher runs a Stage per channel and balances inputs across them.
type Dispatcher[I, O any] struct {
	opts    options
	stages  []Stage[I, O]
	lanes   []*lane[I]
	results chan Result[O]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	space  chan struct{} // closed and replaced whenever a queue slot frees
	seq    uint64
	closed bool

	dropped atomic.Uint64
}

// New starts a dispatcher with n channels. build is called once per
// channel index to create that channel's stage.
func New[I, O any](n int, build func(channel int) Stage[I, O], opts ...Option) (*Dispatcher[I, O], error) {
	if n < 1 {
		return nil, errors.InvalidInput("channels", "need at least one channel")
	}
	if build == nil {
		return nil, errors.InvalidInput("build", "stage builder is nil")
	}

	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher[I, O]{
		opts:    o,
		stages:  make([]Stage[I, O], n),
		lanes:   make([]*lane[I], n),
		results: make(chan Result[O], n),
		ctx:     ctx,
		cancel:  cancel,
		space:   make(chan struct{}),
	}
	d.opts.log = o.log.WithFields(map[string]interface{}{"stage": o.name})

	for i := range n {
		stage := build(i)
		if stage == nil {
			cancel()
			return nil, errors.InvalidInput("build", "stage builder returned nil")
		}
		d.stages[i] = stage
		d.lanes[i] = &lane[I]{queue: make(chan job[I], o.queueSize)}
	}

	d.wg.Add(n)
	for i := range n {
		go d.work(i)
	}
	go func() {
		d.wg.Wait()
		close(d.results)
	}()
	return d, nil
}

// Channels returns the number of channels.
func (d *Dispatcher[I, O]) Channels() int { return len(d.lanes) }

// Results returns the merged output. It is closed after Shutdown once
// all queued work is done, or after Close.
func (d *Dispatcher[I, O]) Results() <-chan Result[O] { return d.results }

// Submit assigns in to the least-loaded channel with queue room.
func (d *Dispatcher[I, O]) Submit(ctx context.Context, in I) error {
	j := job[I]{in: in, span: trace.SpanContextFromContext(ctx)}

	d.mu.Lock()
	for {
		if d.closed {
			d.mu.Unlock()
			return errors.Closed(d.opts.name)
		}
		if ch := d.enqueueLocked(&j); ch >= 0 {
			d.mu.Unlock()
			d.opts.metrics.QueueDelta(ctx, d.opts.name, ch, 1)
			return nil
		}
		if d.opts.saturation == SaturationDrop {
			d.mu.Unlock()
			d.dropped.Add(1)
			d.opts.metrics.RecordDropped(ctx, d.opts.name)
			d.opts.log.WithContext(ctx).Warn("All channels saturated, dropping input", map[string]interface{}{
				"channels":   len(d.lanes),
				"queue_size": d.opts.queueSize,
			})
			return errors.Saturated(len(d.lanes))
		}

		space := d.space
		d.mu.Unlock()
		select {
		case <-space:
		case <-ctx.Done():
			return ctx.Err()
		case <-d.ctx.Done():
			return errors.Closed(d.opts.name)
		}
		d.mu.Lock()
	}
}

// enqueueLocked tries channels from least to most loaded and returns the
// channel that took the job, or -1 if every queue is full.
func (d *Dispatcher[I, O]) enqueueLocked(j *job[I]) int {
	order := make([]int, len(d.lanes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(d.lanes[a].load, d.lanes[b].load)
	})

	for _, ch := range order {
		l := d.lanes[ch]
		j.seq = d.seq + 1
		select {
		case l.queue <- *j:
			d.seq++
			l.load++
			l.submitted.Add(1)
			return ch
		default:
		}
	}
	return -1
}

func (d *Dispatcher[I, O]) work(ch int) {
	defer d.wg.Done()
	l := d.lanes[ch]
	stage := d.stages[ch]

	for {
		var j job[I]
		select {
		case <-d.ctx.Done():
			return
		case next, ok := <-l.queue:
			if !ok {
				return
			}
			j = next
		}
		d.signalSpace()

		out, err := d.run(ch, stage, j)

		d.mu.Lock()
		l.load--
		d.mu.Unlock()
		d.opts.metrics.QueueDelta(d.ctx, d.opts.name, ch, -1)
		if err != nil {
			l.failed.Add(1)
		} else {
			l.completed.Add(1)
		}

		select {
		case d.results <- Result[O]{Channel: ch, Seq: j.seq, Value: out, Err: err}:
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher[I, O]) run(ch int, stage Stage[I, O], j job[I]) (O, error) {
	ctx := trace.ContextWithSpanContext(d.ctx, j.span)
	ctx, span := observability.StartSpan(ctx, observability.SpanFanout, trace.WithAttributes(
		attribute.Int(observability.AttrChannel, ch),
		attribute.Int64(observability.AttrCycleSeq, int64(j.seq)),
	))
	out, err := stage(ctx, j.in)
	observability.EndSpan(span, err)
	if err != nil {
		d.opts.log.Debug("Stage failed", logger.MergeWithError(map[string]interface{}{
			logger.FieldChannel:  ch,
			logger.FieldSequence: j.seq,
		}, err))
	}
	return out, err
}

func (d *Dispatcher[I, O]) signalSpace() {
	d.mu.Lock()
	close(d.space)
	d.space = make(chan struct{})
	d.mu.Unlock()
}

// Shutdown stops accepting input. Work already queued still runs and
// Results is closed once it has been delivered.
func (d *Dispatcher[I, O]) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

// Close cancels every channel, discards queued work and waits for the
// channel goroutines to exit. It is safe to call more than once.
func (d *Dispatcher[I, O]) Close() error {
	d.cancel()
	d.mu.Lock()
	d.closeLocked()
	d.mu.Unlock()
	d.wg.Wait()

	// Queues are closed and no worker is left, so what remains is discarded.
	for ch, l := range d.lanes {
		var n int
		for range l.queue {
			n++
		}
		if n == 0 {
			continue
		}
		d.mu.Lock()
		l.load -= n
		d.mu.Unlock()
		d.opts.metrics.QueueDelta(d.ctx, d.opts.name, ch, -int64(n))
		d.opts.log.Debug("Discarded queued inputs", map[string]interface{}{
			logger.FieldChannel: ch,
			"count":             n,
		})
	}
	return nil
}

func (d *Dispatcher[I, O]) closeLocked() {
	if d.closed {
		return
	}
	d.closed = true
	for _, l := range d.lanes {
		close(l.queue)
	}
	close(d.space)
	d.space = make(chan struct{})
}

// ChannelStats is a snapshot of one channel.
type ChannelStats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Load      int
}

// Stats is a snapshot of the dispatcher.
type Stats struct {
	Channels []ChannelStats
	Dropped  uint64
}

// Stats returns per-channel counters.
func (d *Dispatcher[I, O]) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Stats{Channels: make([]ChannelStats, len(d.lanes)), Dropped: d.dropped.Load()}
	for i, l := range d.lanes {
		s.Channels[i] = ChannelStats{
			Submitted: l.submitted.Load(),
			Completed: l.completed.Load(),
			Failed:    l.failed.Load(),
			Load:      l.load,
		}
	}
	return s
}
