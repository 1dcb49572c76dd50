package fanout

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/plcstream/errors"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
)

func identity(int) Stage[int, int] {
	return func(_ context.Context, v int) (int, error) { return v, nil }
}

func collect[O any](t *testing.T, d *Dispatcher[int, O]) []Result[O] {
	t.Helper()
	var out []Result[O]
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-d.Results():
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("timed out waiting for results")
		}
	}
}

func TestNew_RejectsBadArguments(t *testing.T) {
	if _, err := New(0, identity); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for zero channels, got %v", err)
	}
	if _, err := New[int, int](2, nil); err == nil {
		t.Error("expected error for nil builder")
	}
}

func TestDispatcher_NoLossNoDuplication(t *testing.T) {
	d, err := New(3, identity, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 1; i <= 9; i++ {
		if err := d.Submit(ctx, i); err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
	}
	d.Shutdown()

	results := collect(t, d)
	if len(results) != 9 {
		t.Fatalf("expected 9 results, got %d", len(results))
	}
	seen := make(map[int]bool)
	lastSeq := make(map[int]uint64)
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected error %v", r.Err)
		}
		if seen[r.Value] {
			t.Errorf("value %d delivered twice", r.Value)
		}
		seen[r.Value] = true
		if r.Seq <= lastSeq[r.Channel] {
			t.Errorf("channel %d out of order: seq %d after %d", r.Channel, r.Seq, lastSeq[r.Channel])
		}
		lastSeq[r.Channel] = r.Seq
		if int(r.Seq) != r.Value {
			t.Errorf("seq %d does not match submission order of value %d", r.Seq, r.Value)
		}
	}

	var total uint64
	for _, cs := range d.Stats().Channels {
		total += cs.Completed
	}
	if total != 9 {
		t.Errorf("expected 9 completed in stats, got %d", total)
	}
}

func TestDispatcher_BalancesAwayFromSlowChannel(t *testing.T) {
	gate := make(chan struct{})
	build := func(ch int) Stage[int, int] {
		return func(ctx context.Context, v int) (int, error) {
			if ch == 0 {
				select {
				case <-gate:
				case <-ctx.Done():
				}
			}
			return v, nil
		}
	}
	d, err := New(3, build, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	// First input lands on channel 0 and blocks there.
	if err := d.Submit(ctx, 0); err != nil {
		t.Fatal(err)
	}
	var got []Result[int]
	for i := 1; i <= 6; i++ {
		if err := d.Submit(ctx, i); err != nil {
			t.Fatal(err)
		}
		got = append(got, <-d.Results())
	}
	for _, r := range got {
		if r.Channel == 0 {
			t.Errorf("value %d assigned to the blocked channel", r.Value)
		}
	}
	close(gate)
}

func TestDispatcher_TieGoesToLowestIndex(t *testing.T) {
	d, err := New(3, identity, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := d.Submit(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	r := <-d.Results()
	if r.Channel != 0 {
		t.Errorf("expected idle tie to go to channel 0, got %d", r.Channel)
	}
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	boom := stderrors.New("boom")
	build := func(int) Stage[int, int] {
		return func(_ context.Context, v int) (int, error) {
			if v == 2 {
				return 0, boom
			}
			return v, nil
		}
	}
	d, err := New(1, build, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := d.Submit(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	d.Shutdown()

	results := collect(t, d)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !stderrors.Is(results[1].Err, boom) {
		t.Errorf("expected second result to carry the stage error, got %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Value != 3 {
		t.Errorf("expected channel to continue after failure, got %+v", results[2])
	}
	if s := d.Stats().Channels[0]; s.Failed != 1 || s.Completed != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
}

// saturate returns a one-channel dispatcher whose only worker is busy and
// whose queue is full.
func saturate(t *testing.T, policy Saturation) (*Dispatcher[int, int], chan struct{}) {
	t.Helper()
	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	build := func(int) Stage[int, int] {
		return func(ctx context.Context, v int) (int, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-gate:
			case <-ctx.Done():
			}
			return v, nil
		}
	}
	d, err := New(1, build, WithQueueSize(1), WithSaturation(policy), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := d.Submit(ctx, 1); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := d.Submit(ctx, 2); err != nil {
		t.Fatal(err)
	}
	return d, gate
}

func TestDispatcher_DropWhenSaturated(t *testing.T) {
	d, gate := saturate(t, SaturationDrop)
	defer d.Close()

	err := d.Submit(context.Background(), 3)
	if !errors.IsCode(err, errors.ErrCodeSaturated) {
		t.Fatalf("expected CHANNEL_SATURATED, got %v", err)
	}
	if d.Stats().Dropped != 1 {
		t.Errorf("expected one drop, got %d", d.Stats().Dropped)
	}
	close(gate)
}

func TestDispatcher_BlockWhenSaturated(t *testing.T) {
	d, gate := saturate(t, SaturationBlock)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Submit(ctx, 3); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Submit to block until deadline, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Submit(context.Background(), 4) }()
	close(gate)
	go func() {
		for range d.Results() {
		}
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected blocked Submit to succeed once room frees, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocked Submit never woke up")
	}
}

func TestDispatcher_CloseUnblocksEverything(t *testing.T) {
	d, _ := saturate(t, SaturationBlock)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			errs <- d.Submit(context.Background(), v)
		}(10 + i)
	}

	time.Sleep(10 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		_ = d.Close()
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close deadlocked")
	}
	close(errs)
	for err := range errs {
		if !errors.IsCode(err, errors.ErrCodeClosed) {
			t.Errorf("expected CLOSED for blocked submitters, got %v", err)
		}
	}
	if err := d.Submit(context.Background(), 99); !errors.IsCode(err, errors.ErrCodeClosed) {
		t.Errorf("expected CLOSED after Close, got %v", err)
	}
	_ = d.Close()
}

func TestDispatcher_CloseReleasesQueuedInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := observability.NewPollMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{}, 1)
	build := func(int) Stage[int, int] {
		return func(ctx context.Context, v int) (int, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return v, ctx.Err()
		}
	}
	d, err := New(1, build, WithQueueSize(4), WithMetrics(metrics), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for v := range 4 {
		if err := d.Submit(ctx, v); err != nil {
			t.Fatal(err)
		}
		if v == 0 {
			<-started
		}
	}
	_ = d.Close()

	if load := d.Stats().Channels[0].Load; load != 0 {
		t.Errorf("expected no load after Close, got %d", load)
	}
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var depth int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "plc.fanout.queued" {
				for _, dp := range sum.DataPoints {
					depth += dp.Value
				}
			}
		}
	}
	if depth != 0 {
		t.Errorf("expected queue depth 0 after Close, got %d", depth)
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Channels != 1 || c.QueueSize != DefaultQueueSize || c.Saturation != SaturationBlock {
		t.Errorf("unexpected defaults %+v", c)
	}
	o := buildOptions(Config{QueueSize: 4, Saturation: SaturationDrop}.Options())
	if o.queueSize != 4 || o.saturation != SaturationDrop {
		t.Errorf("unexpected options %+v", o)
	}
}
