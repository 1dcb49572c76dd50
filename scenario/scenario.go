package scenario

import (
	"context"
	stderrors "errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/plcstream/decode"
	"github.com/kbukum/plcstream/device"
	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/fanout"
	"github.com/kbukum/plcstream/filter"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
	"github.com/kbukum/plcstream/pipeline"
	"github.com/kbukum/plcstream/poller"
	"github.com/kbukum/plcstream/sink"
)

// Option configures a Runner.
type Option func(*Runner)

// WithCoilSink sets where coil values go. Defaults to stdout.
func WithCoilSink(s sink.Sink[[]bool]) Option {
	return func(r *Runner) { r.coils = s }
}

// WithReadingSink sets where decoded readings go. Defaults to stdout.
func WithReadingSink(s sink.Sink[decode.Reading]) Option {
	return func(r *Runner) { r.readings = s }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithMetrics records poll, decode, filter and fan-out metrics.
func WithMetrics(m *observability.PollMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner runs the enabled scenarios against one device.
type Runner struct {
	cfg      Config
	reader   device.Reader
	decoder  *decode.Decoder
	coils    sink.Sink[[]bool]
	readings sink.Sink[decode.Reading]
	log      *logger.Logger
	metrics  *observability.PollMetrics
}

// New validates cfg and returns a Runner that issues every read through
// reader, so all scenarios share its breaker.
func New(cfg Config, reader device.Reader, decoder *decode.Decoder, opts ...Option) (*Runner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, errors.InvalidInput("reader", "device reader is required")
	}
	if decoder == nil {
		decoder, _ = decode.New(decode.ModeTruncate15)
	}
	r := &Runner{cfg: cfg, reader: reader, decoder: decoder}
	for _, opt := range opts {
		opt(r)
	}
	if r.coils == nil {
		r.coils = sink.NewConsole[[]bool](nil)
	}
	if r.readings == nil {
		r.readings = sink.NewConsole[decode.Reading](nil)
	}
	if r.log == nil {
		r.log = logger.Get("scenario")
	}
	return r, nil
}

// Enabled lists the names of the scenarios Run will start.
func (r *Runner) Enabled() []string {
	var names []string
	for _, s := range r.scenarios() {
		names = append(names, s.name)
	}
	return names
}

type scenario struct {
	name string
	run  func(ctx context.Context) error
}

func (r *Runner) scenarios() []scenario {
	var out []scenario
	if r.cfg.Coil.Enabled {
		out = append(out, scenario{"coil", r.runCoil})
	}
	if r.cfg.Holding.Enabled {
		out = append(out, scenario{"holding", r.runHolding})
	}
	if r.cfg.Filter.Enabled {
		out = append(out, scenario{"filter", r.runFilter})
	}
	if r.cfg.Parallel.Enabled {
		out = append(out, scenario{"parallel", r.runParallel})
	}
	return out
}

// Run starts every enabled scenario and blocks until ctx is cancelled or
// one scenario fails, which stops the others. Cancellation is not an
// error.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.scenarios() {
		log := r.log.WithFields(map[string]interface{}{"scenario": s.name})
		g.Go(func() error {
			log.Info("Scenario started")
			err := s.run(gctx)
			if err != nil && gctx.Err() != nil {
				err = nil
			}
			if err != nil {
				log.Error("Scenario failed", logger.MergeWithError(nil, err))
				return err
			}
			log.Info("Scenario stopped")
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) pollerOptions(it ItemConfig) []poller.Option {
	return []poller.Option{
		poller.WithAddress(it.Address),
		poller.WithLogger(r.log.WithComponent("poller")),
		poller.WithMetrics(r.metrics),
	}
}

func (r *Runner) runCoil(ctx context.Context) error {
	it := r.cfg.Coil
	read, err := device.BooleanListSupplier(r.reader, it.Address)
	if err != nil {
		return err
	}
	p, err := poller.New(it.Item, poller.ReadFunc[[]bool](read), it.Poll, r.pollerOptions(it)...)
	if err != nil {
		return err
	}
	return pipeline.Drain(buffered(p.Source(), it.Buffer), func(ctx context.Context, c poller.Cycle[[]bool]) error {
		at := recordRef{item: it.Item, address: it.Address, seq: c.Seq, cycleID: c.ID}
		if c.Failed() {
			r.skipFailedRead(ctx, at, c.Err)
			return nil
		}
		return deliver(ctx, r, r.coils, at, c.Value)
	}).Run(ctx)
}

func (r *Runner) runHolding(ctx context.Context) error {
	it := r.cfg.Holding
	readings, err := r.decoded(it)
	if err != nil {
		return err
	}
	return pipeline.Drain(buffered(readings, it.Buffer), r.sendReading(it)).Run(ctx)
}

func (r *Runner) runFilter(ctx context.Context) error {
	it := r.cfg.Filter
	readings, err := r.decoded(it.ItemConfig)
	if err != nil {
		return err
	}
	rng := filter.Between(it.Low, it.High)
	r.log.Debug("Filter configured", map[string]interface{}{
		logger.FieldItem: it.Item,
		"range":          rng.String(),
	})

	pass := filter.ReadingPredicate(rng)
	kept := pipeline.TryFilter(readings, func(ctx context.Context, v decode.Reading) (bool, error) {
		ok, err := pass(ctx, v)
		if err == nil && !ok {
			r.metrics.RecordFiltered(ctx, v.Item)
		}
		return ok, err
	}, r.dropRecord(it.Item))
	return pipeline.Drain(buffered(kept, it.Buffer), r.sendReading(it.ItemConfig)).Run(ctx)
}

func (r *Runner) runParallel(ctx context.Context) error {
	it := r.cfg.Parallel
	cycles, err := r.cycles(it.ItemConfig)
	if err != nil {
		return err
	}

	name := "parallel:" + it.Item
	decodeCycle := r.decodeCycle(it.Item)
	opts := append(it.Fanout.Options(),
		fanout.WithName(name),
		fanout.WithLogger(r.log.WithComponent(name)),
		fanout.WithMetrics(r.metrics),
	)
	results := pipeline.ParallelBalanced(cycles, it.Fanout.Channels,
		func(int) fanout.Stage[poller.Cycle[*device.ReadResponse], decode.Reading] {
			return decodeCycle
		}, opts...)

	drop := r.dropRecord(it.Item)
	send := r.sendReading(it.ItemConfig)
	return pipeline.Drain(buffered(results, it.Buffer), func(ctx context.Context, res fanout.Result[decode.Reading]) error {
		if res.Err != nil {
			return drop(ctx, res.Value, channelError{channel: res.Channel, err: res.Err})
		}
		return send(ctx, res.Value)
	}).Run(ctx)
}

// cycles polls one named item as a batch read.
func (r *Runner) cycles(it ItemConfig) (*pipeline.Pipeline[poller.Cycle[*device.ReadResponse]], error) {
	req, err := device.NewRequestBuilder().AddItem(it.Item, it.Address).Build()
	if err != nil {
		return nil, err
	}
	p, err := poller.New(it.Item, poller.ReadFunc[*device.ReadResponse](device.BatchSupplier(r.reader, req)),
		it.Poll, r.pollerOptions(it)...)
	if err != nil {
		return nil, err
	}
	return p.Source(), nil
}

// decoded polls one item and decodes every cycle. Cycles that failed to
// read or decode are logged and dropped.
func (r *Runner) decoded(it ItemConfig) (*pipeline.Pipeline[decode.Reading], error) {
	cycles, err := r.cycles(it)
	if err != nil {
		return nil, err
	}
	drop := r.dropRecord(it.Item)
	return pipeline.TryMap(cycles, r.decodeCycle(it.Item),
		func(ctx context.Context, c poller.Cycle[*device.ReadResponse], err error) error {
			return drop(ctx, decode.Reading{Item: c.Item, Cycle: c.Seq, CycleID: c.ID, Time: c.Time}, err)
		}), nil
}

func (r *Runner) decodeCycle(item string) func(context.Context, poller.Cycle[*device.ReadResponse]) (decode.Reading, error) {
	return func(_ context.Context, c poller.Cycle[*device.ReadResponse]) (decode.Reading, error) {
		v := decode.Reading{Item: item, Cycle: c.Seq, CycleID: c.ID, Time: c.Time}
		if c.Failed() {
			return v, readError{err: c.Err}
		}
		rec, err := r.decoder.Response(c.Value, item)
		v.Values = rec
		return v, err
	}
}

// sendReading delivers decoded readings under the sink failure policy.
func (r *Runner) sendReading(it ItemConfig) func(context.Context, decode.Reading) error {
	return func(ctx context.Context, v decode.Reading) error {
		at := recordRef{item: it.Item, address: it.Address, seq: v.Cycle, cycleID: v.CycleID}
		return deliver(ctx, r, r.readings, at, v)
	}
}

// recordRef locates one record for logging.
type recordRef struct {
	item    string
	address string
	seq     uint64
	cycleID string
}

func (at recordRef) fields() map[string]interface{} {
	return map[string]interface{}{
		logger.FieldItem:     at.item,
		logger.FieldAddress:  at.address,
		logger.FieldSequence: at.seq,
	}
}

// deliver sends v to s. A failed send is logged and the scenario carries
// on, unless the policy is halt or the scenario is being cancelled.
func deliver[T any](ctx context.Context, r *Runner, s sink.Sink[T], at recordRef, v T) error {
	err := s.Send(ctx, v)
	if err == nil || ctx.Err() != nil {
		return err
	}
	fields := at.fields()
	fields["sink"] = s.Name()
	log := r.log.WithContext(logger.ContextWithCycle(ctx, at.cycleID))
	if r.cfg.OnSinkError == sink.FailureHalt {
		log.Error("Sink failed, halting", logger.MergeWithError(fields, err))
		return err
	}
	log.Warn("Sink failed, record skipped", logger.MergeWithError(fields, err))
	return nil
}

func (r *Runner) skipFailedRead(ctx context.Context, at recordRef, err error) {
	r.log.WithContext(logger.ContextWithCycle(ctx, at.cycleID)).
		Debug("Skipping failed read", logger.MergeWithError(at.fields(), err))
}

// dropRecord reports per-record failures and lets the pipeline continue.
// Any other error ends the scenario.
func (r *Runner) dropRecord(item string) func(context.Context, decode.Reading, error) error {
	return func(ctx context.Context, v decode.Reading, err error) error {
		fields := map[string]interface{}{
			logger.FieldItem:     item,
			logger.FieldSequence: v.Cycle,
		}
		var ce channelError
		if stderrors.As(err, &ce) {
			fields[logger.FieldChannel] = ce.channel
		}
		var re readError
		if stderrors.As(err, &re) {
			r.log.WithContext(logger.ContextWithCycle(ctx, v.CycleID)).
				Debug("Skipping failed read", logger.MergeWithError(fields, re.err))
			return nil
		}
		switch {
		case errors.IsCode(err, errors.ErrCodeDecodeFailed), errors.IsCode(err, errors.ErrCodeCountMismatch):
			r.metrics.RecordDecodeError(ctx, item)
			r.log.WithContext(logger.ContextWithCycle(ctx, v.CycleID)).
				Warn("Dropping record that failed to decode", logger.MergeWithError(fields, err))
			return nil
		case errors.IsCode(err, errors.ErrCodeIndexOutOfRange):
			r.log.WithContext(logger.ContextWithCycle(ctx, v.CycleID)).
				Warn("Dropping empty record", logger.MergeWithError(fields, err))
			return nil
		default:
			return err
		}
	}
}

// readError marks a cycle whose read failed and was forwarded by the
// skip policy. The poller already logged and counted it.
type readError struct{ err error }

func (e readError) Error() string { return "read failed: " + e.err.Error() }
func (e readError) Unwrap() error { return e.err }

type channelError struct {
	channel int
	err     error
}

func (e channelError) Error() string {
	return "channel " + strconv.Itoa(e.channel) + ": " + e.err.Error()
}
func (e channelError) Unwrap() error { return e.err }

func buffered[T any](p *pipeline.Pipeline[T], size int) *pipeline.Pipeline[T] {
	if size <= 0 {
		return p
	}
	return pipeline.Buffer(p, size)
}
