package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
	"github.com/kbukum/plcstream/pipeline"
	"github.com/kbukum/plcstream/resilience"
)

// ReadFunc is the zero-argument read a Poller invokes every period.
type ReadFunc[T any] func(ctx context.Context) (T, error)

// Cycle is one poll: the value read, or the error that replaced it.
type Cycle[T any] struct {
	ID       string
	Seq      uint64
	Item     string
	Time     time.Time
	Duration time.Duration
	Value    T
	// Err is set when the read failed and the skip policy forwarded the
	// cycle anyway. Value is then the zero value.
	Err error
}

// Failed reports whether the read of this cycle failed.
func (c Cycle[T]) Failed() bool { return c.Err != nil }

// Stats counts what a Poller has done so far.
type Stats struct {
	Reads   uint64
	Errors  uint64
	Skipped uint64
}

// Option configures a Poller.
type Option func(*settings)

type settings struct {
	address string
	log     *logger.Logger
	metrics *observability.PollMetrics
}

// WithAddress sets the device address spec shown in logs and spans.
func WithAddress(spec string) Option {
	return func(s *settings) { s.address = spec }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithMetrics records cycle outcomes.
func WithMetrics(m *observability.PollMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// Poller invokes a ReadFunc on a fixed period.
type Poller[T any] struct {
	name    string
	address string
	read    ReadFunc[T]
	cfg     Config
	log     *logger.Logger
	metrics *observability.PollMetrics

	// replaced in tests
	newTicker func(time.Duration) (<-chan time.Time, func())
	now       func() time.Time

	seq     atomic.Uint64
	reads   atomic.Uint64
	errs    atomic.Uint64
	skipped atomic.Uint64
}

// New returns a poller named name (the item it reads) after applying
// config defaults and validating them.
func New[T any](name string, read ReadFunc[T], cfg Config, opts ...Option) (*Poller[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := settings{address: name}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = logger.Get("poller")
	}
	return &Poller[T]{
		name:    name,
		address: s.address,
		read:    read,
		cfg:     cfg,
		log: s.log.WithFields(map[string]interface{}{
			logger.FieldItem:    name,
			logger.FieldAddress: s.address,
		}),
		metrics:   s.metrics,
		newTicker: realTicker,
		now:       time.Now,
	}, nil
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Name returns the item name.
func (p *Poller[T]) Name() string { return p.name }

// Config returns the effective configuration.
func (p *Poller[T]) Config() Config { return p.cfg }

// Stats returns the counters.
func (p *Poller[T]) Stats() Stats {
	return Stats{Reads: p.reads.Load(), Errors: p.errs.Load(), Skipped: p.skipped.Load()}
}

// Run polls until ctx is cancelled or a read fails under the halt or
// retry policy. emit receives every successful cycle, and under the skip
// policy every failed one too; an emit error stops the loop and is
// returned.
func (p *Poller[T]) Run(ctx context.Context, emit func(context.Context, Cycle[T]) error) error {
	ticks, stop := p.newTicker(p.cfg.Interval)
	defer stop()

	p.log.Info("Poller started", map[string]interface{}{
		"interval": p.cfg.Interval.String(),
		"overlap":  string(p.cfg.Overlap),
		"on_error": string(p.cfg.OnError),
	})
	defer p.log.Debug("Poller stopped", map[string]interface{}{
		"reads":   p.reads.Load(),
		"skipped": p.skipped.Load(),
	})

	if err := p.poll(ctx, ticks, emit); err != nil {
		return p.exit(ctx, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			if err := p.poll(ctx, ticks, emit); err != nil {
				return p.exit(ctx, err)
			}
		}
	}
}

// exit turns a cancellation into a clean stop.
func (p *Poller[T]) exit(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// poll runs one cycle, plus catch-up cycles under the queue policy.
func (p *Poller[T]) poll(ctx context.Context, ticks <-chan time.Time, emit func(context.Context, Cycle[T]) error) error {
	for {
		busy, err := p.cycle(ctx, emit)
		if err != nil {
			return err
		}
		missed := uint64(busy / p.cfg.Interval)
		if missed == 0 {
			return nil
		}

		// The ticker holds at most one pending tick; it belongs to the
		// interval we just overran.
		select {
		case <-ticks:
		default:
		}

		if p.cfg.Overlap == OverlapQueue && ctx.Err() == nil {
			p.countSkipped(ctx, missed-1)
			p.log.Debug("Read overran interval, catching up", map[string]interface{}{"missed": missed})
			continue
		}
		p.countSkipped(ctx, missed)
		p.log.Debug("Read overran interval, skipping ticks", map[string]interface{}{"missed": missed})
		return nil
	}
}

func (p *Poller[T]) countSkipped(ctx context.Context, n uint64) {
	p.skipped.Add(n)
	for range n {
		p.metrics.RecordCycle(ctx, p.name, observability.StatusSkipped, 0)
	}
}

// cycle reads once and emits the result. It returns how long the cycle
// kept the poll goroutine busy.
func (p *Poller[T]) cycle(ctx context.Context, emit func(context.Context, Cycle[T]) error) (time.Duration, error) {
	start := p.now()
	seq := p.seq.Add(1)
	id := uuid.NewString()

	ctx = logger.ContextWithCycle(ctx, id)
	ctx, span := observability.StartCycleSpan(ctx, p.name, p.address, seq)

	value, err := p.readOnce(ctx)
	p.reads.Add(1)
	elapsed := p.now().Sub(start)

	if err != nil {
		observability.EndSpan(span, err)
		if ctx.Err() != nil {
			return elapsed, ctx.Err()
		}
		p.errs.Add(1)
		p.metrics.RecordCycle(ctx, p.name, observability.StatusError, elapsed)
		fields := logger.MergeWithError(map[string]interface{}{
			logger.FieldSequence: seq,
			"policy":             string(p.cfg.OnError),
		}, err)
		if p.cfg.OnError != ErrorSkip {
			p.log.WithContext(ctx).Error("Read failed, stopping poller", fields)
			return elapsed, err
		}
		p.log.WithContext(ctx).Warn("Read failed, waiting for next tick", fields)
		emitErr := emit(ctx, Cycle[T]{ID: id, Seq: seq, Item: p.name, Time: start, Duration: elapsed, Err: err})
		return p.now().Sub(start), emitErr
	}

	p.metrics.RecordCycle(ctx, p.name, observability.StatusOK, elapsed)
	err = emit(ctx, Cycle[T]{
		ID:       id,
		Seq:      seq,
		Item:     p.name,
		Time:     start,
		Duration: elapsed,
		Value:    value,
	})
	observability.EndSpan(span, err)
	return p.now().Sub(start), err
}

func (p *Poller[T]) readOnce(ctx context.Context) (T, error) {
	if p.cfg.OnError != ErrorRetry {
		return p.read(ctx)
	}
	retry := p.cfg.Retry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		p.log.WithContext(ctx).Warn("Read failed, retrying", logger.MergeWithError(map[string]interface{}{
			"attempt": attempt,
			"backoff": backoff.String(),
		}, err))
	}
	return resilience.Retry(ctx, retry, func() (T, error) {
		return p.read(ctx)
	})
}

// Source exposes the poll loop as a pipeline source. The loop starts
// when the pipeline is pulled and stops when it is closed.
func (p *Poller[T]) Source() *pipeline.Pipeline[Cycle[T]] {
	return pipeline.Generate(func(ctx context.Context, yield func(Cycle[T]) error) error {
		return p.Run(ctx, func(_ context.Context, c Cycle[T]) error {
			return yield(c)
		})
	})
}
