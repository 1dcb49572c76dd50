package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "plcstream", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be suppressed at info level, got %q", buf.String())
	}
	l.Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected info message, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	l.Warn("kept")
	m := decodeLine(t, &buf)
	if m["level"] != "warn" || m["message"] != "kept" {
		t.Errorf("unexpected entry %v", m)
	}
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug")
	l.Error("decode failed", Fields(FieldAddress, "readholdingregisters:0[3]", FieldChannel, 2))
	m := decodeLine(t, &buf)
	if m[FieldAddress] != "readholdingregisters:0[3]" {
		t.Errorf("expected address field, got %v", m[FieldAddress])
	}
	if m[FieldChannel] != float64(2) {
		t.Errorf("expected channel 2, got %v", m[FieldChannel])
	}
	if _, ok := m["time"]; ok {
		t.Error("timestamp disabled in config, expected no time field")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("poller")
	l.Info("tick")
	m := decodeLine(t, &buf)
	if m[FieldComponent] != "poller" {
		t.Errorf("expected component=poller, got %v", m[FieldComponent])
	}
}

func TestWithContextCycleID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithCycle(context.Background(), "c-123")
	jsonLogger(&buf, "info").WithContext(ctx).Info("cycle")
	m := decodeLine(t, &buf)
	if m[FieldCycleID] != "c-123" {
		t.Errorf("expected cycle id, got %v", m[FieldCycleID])
	}
	if _, ok := m[FieldTraceID]; ok {
		t.Error("no span in context, expected no trace id")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithError(errors.New("connection refused")).Error("poll failed")
	m := decodeLine(t, &buf)
	if m["error"] != "connection refused" {
		t.Errorf("expected error field, got %v", m["error"])
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithFields(Fields(FieldItem, "test1")).Info("decoded")
	m := decodeLine(t, &buf)
	if m[FieldItem] != "test1" {
		t.Errorf("expected item field, got %v", m[FieldItem])
	}
}

func TestNop(t *testing.T) {
	Nop().Error("discarded")
}

func TestInitSetsGlobal(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	Init(Config{Level: "debug", Format: "json", ServiceName: "plcdemo"})
	if GetGlobalLogger().service != "plcdemo" {
		t.Errorf("expected global service plcdemo, got %q", GetGlobalLogger().service)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"pretty", Config{Level: "debug", Format: "pretty"}, false},
		{"bad level", Config{Level: "loud", Format: "json"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConsoleFormatWritesTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "plcdemo", &buf)
	l.Info("hello")
	if !strings.Contains(buf.String(), "[PLC][INF]") {
		t.Errorf("expected service tag and level, got %q", buf.String())
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := Nop()
	Register("sink-test", l)
	if Get("sink-test") != l {
		t.Error("expected registered logger")
	}
	if Get("never-registered") == nil {
		t.Error("expected fallback logger for unknown name")
	}
}

func TestRegisterDefaults(t *testing.T) {
	var buf bytes.Buffer
	base := jsonLogger(&buf, "info")

	RegisterDefaults(base, "defaults-a", "defaults-b")
	if Get("defaults-a") != Get("defaults-a") {
		t.Error("expected the registered logger, not a fresh fallback")
	}
	Get("defaults-b").Info("hello")
	if !strings.Contains(buf.String(), `"component":"defaults-b"`) {
		t.Errorf("expected output through base tagged with the name, got %q", buf.String())
	}
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields("a", 1, "b")
	if len(f) != 1 || f["a"] != 1 {
		t.Errorf("expected odd trailing key to be ignored, got %v", f)
	}
	ef := ErrorFields("poll", errors.New("boom"))
	if ef[FieldOperation] != "poll" || ef[FieldError] != "boom" {
		t.Errorf("unexpected error fields %v", ef)
	}
	df := DurationFields("read", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", df[FieldDuration])
	}
	mf := MergeWithError(nil, errors.New("x"))
	if mf[FieldError] != "x" {
		t.Errorf("expected merged error, got %v", mf)
	}
}
