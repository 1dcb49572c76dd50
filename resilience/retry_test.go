package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/kbukum/plcstream/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0

	result, err := Retry(context.Background(), DefaultRetryConfig(), func() ([]bool, error) {
		callCount++
		return []bool{true, false, true}, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if len(result) != 3 {
		t.Errorf("expected 3 values, got %v", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_RecoversFromConnectionLoss(t *testing.T) {
	callCount := 0

	result, err := Retry(context.Background(), fastRetry(3), func() (int, error) {
		callCount++
		if callCount < 3 {
			return 0, errors.ConnectionFailed("modbus:tcp://127.0.0.1:502", stderrors.New("connection reset"))
		}
		return 15, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != 15 {
		t.Errorf("expected 15, got %d", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	callCount := 0
	testErr := errors.Timeout("read holding registers")

	_, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		callCount++
		return "", testErr
	})

	if err != testErr {
		t.Errorf("expected the last error unchanged, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_DoesNotRetryDecodeErrors(t *testing.T) {
	callCount := 0
	_, err := Retry(context.Background(), fastRetry(5), func() (int, error) {
		callCount++
		return 0, errors.DecodeFailed("00 0f", "shorter than 15 characters")
	})

	if !errors.IsCode(err, errors.ErrCodeDecodeFailed) {
		t.Errorf("expected DECODE_FAILED, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", callCount)
	}
}

func TestRetry_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(10)
	cfg.InitialBackoff = 50 * time.Millisecond
	cfg.MaxBackoff = time.Second

	callCount := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, cfg, func() (int, error) {
		callCount++
		return 0, stderrors.New("keep failing")
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount >= 10 {
		t.Errorf("expected cancellation to stop retries, got %d calls", callCount)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	cfg := fastRetry(3)
	var attempts []int
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		attempts = append(attempts, attempt)
		if backoff <= 0 {
			t.Errorf("expected positive backoff, got %v", backoff)
		}
	}

	_ = RetryFunc(context.Background(), cfg, func() error {
		return stderrors.New("fail")
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected OnRetry for attempts [1 2], got %v", attempts)
	}
}

func TestRetry_CustomRetryIf(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryIf = func(error) bool { return false }

	callCount := 0
	_ = RetryFunc(context.Background(), cfg, func() error {
		callCount++
		return stderrors.New("fail")
	})
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"connection", errors.ConnectionFailed("plc", nil), true},
		{"unavailable", errors.DeviceUnavailable("plc"), true},
		{"decode", errors.DecodeFailed("zz", "not hex"), false},
		{"plain", stderrors.New("io"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultRetryIf(tc.err); got != tc.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffFactor: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{6, 300 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := calculateBackoff(tc.attempt, cfg); got != tc.want {
			t.Errorf("attempt %d: got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryConfig_ApplyDefaults(t *testing.T) {
	var cfg RetryConfig
	cfg.ApplyDefaults()
	d := DefaultRetryConfig()
	if cfg.MaxAttempts != d.MaxAttempts || cfg.InitialBackoff != d.InitialBackoff || cfg.RetryIf == nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
