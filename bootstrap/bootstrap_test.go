package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/plcstream/component"
	"github.com/kbukum/plcstream/config"
	"github.com/kbukum/plcstream/logger"
	"github.com/kbukum/plcstream/observability"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) component.Health {
	return m.health
}

func healthy(name string) *mockComponent {
	return &mockComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "plcdemo", Version: "1.0.0", Environment: "development"}}
	opts = append([]Option{WithLogger(logger.Nop()), WithSignals(false)}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "plcdemo" {
		t.Errorf("expected name 'plcdemo', got %q", app.Name)
	}
	if app.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", app.Version)
	}
	if app.Components == nil || app.Logger == nil {
		t.Error("expected registry and logger")
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected typed config, got %+v", app.Cfg)
	}
}

func TestNewApp_RegistersPackageLoggers(t *testing.T) {
	newTestApp(t)
	for _, name := range packageLoggers {
		if logger.Get(name) != logger.Get(name) {
			t.Errorf("expected %q to resolve to a registered logger", name)
		}
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Environment: "development"}}
	if _, err := NewApp(cfg, WithLogger(logger.Nop())); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestNewAppWithOptions(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(30*time.Second))
	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", app.gracefulTimeout)
	}
	if app.handleSignals {
		t.Error("expected signals disabled")
	}
}

func TestRunTaskLifecycle(t *testing.T) {
	app := newTestApp(t)
	plc := healthy("plc")
	sink := healthy("mqtt")
	app.RegisterComponent(plc)
	app.RegisterComponent(sink)

	var phases []string
	app.OnStart(func(ctx context.Context) error { phases = append(phases, "start"); return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		phases = append(phases, "configure")
		return nil
	})
	app.OnReady(func(ctx context.Context) error { phases = append(phases, "ready"); return nil })
	app.OnStop(func(ctx context.Context) error { phases = append(phases, "stop"); return nil })

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		phases = append(phases, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	want := []string{"start", "configure", "ready", "task", "stop"}
	if fmt.Sprint(phases) != fmt.Sprint(want) {
		t.Errorf("expected phases %v, got %v", want, phases)
	}
	if !plc.started || !plc.stopped || !sink.stopped {
		t.Error("expected components started and stopped")
	}
}

func TestRunTaskReturnsTaskError(t *testing.T) {
	app := newTestApp(t)
	c := healthy("plc")
	c.stopErr = errors.New("close failed")
	app.RegisterComponent(c)

	taskErr := errors.New("decode failed")
	err := app.RunTask(context.Background(), func(ctx context.Context) error { return taskErr })
	if !errors.Is(err, taskErr) {
		t.Errorf("expected task error to win, got %v", err)
	}
	if !c.stopped {
		t.Error("expected shutdown after task error")
	}
}

func TestRunTaskStopError(t *testing.T) {
	app := newTestApp(t)
	c := healthy("plc")
	c.stopErr = errors.New("close failed")
	app.RegisterComponent(c)

	err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("expected stop error when the task succeeds")
	}
}

func TestRunTaskStartFailureUnwinds(t *testing.T) {
	app := newTestApp(t)
	first := healthy("plc")
	broken := &mockComponent{name: "mqtt", startErr: errors.New("broker down")}
	app.RegisterComponent(first)
	app.RegisterComponent(broken)

	ran := false
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err == nil {
		t.Fatal("expected startup error")
	}
	if ran {
		t.Error("task must not run after a failed startup")
	}
	if !first.stopped {
		t.Error("expected the started component to be stopped")
	}
}

func TestRunTaskHookFailure(t *testing.T) {
	app := newTestApp(t)
	app.OnStart(func(ctx context.Context) error { return errors.New("telemetry init failed") })
	err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected hook error")
	}
}

func TestRunTaskParentCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := app.RunTask(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected parent deadline to surface, got %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	app.RegisterComponent(healthy("plc"))
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("expected ready, got %v", err)
	}

	app.RegisterComponent(&mockComponent{
		name:   "mqtt",
		health: component.Health{Name: "mqtt", Status: component.StatusUnhealthy, Message: "not connected"},
	})
	if err := app.ReadyCheck(context.Background()); err == nil {
		t.Error("expected unhealthy component to fail ready check")
	}
}

func TestRunStopsOnContext(t *testing.T) {
	app := newTestApp(t)
	c := healthy("simulator")
	app.RegisterComponent(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if !c.stopped {
		t.Error("expected component stopped")
	}
}

func TestWithTelemetryDisabled(t *testing.T) {
	app := newTestApp(t)
	if app.Metrics != nil {
		t.Error("expected nil metrics without telemetry")
	}

	app = newTestApp(t, WithTelemetry(observability.Config{Enabled: false}))
	if app.Metrics == nil {
		t.Fatal("expected metrics instruments on the no-op meter")
	}
	app.Metrics.RecordCycle(context.Background(), "test1", observability.StatusOK, time.Millisecond)
	if len(app.onStop) != 1 {
		t.Errorf("expected the telemetry flush hook, got %d stop hooks", len(app.onStop))
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
