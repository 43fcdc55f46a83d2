package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("always failing")
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return true, wantErr
	})
	if err == nil {
		t.Fatal("Do() should fail after exhausting attempts")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error should wrap the last failure, got %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	wantErr := errors.New("permanent")
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &Config{
		MaxAttempts:  5,
		InitialDelay: time.Hour, // never elapses
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(ctx context.Context, attempt int) (bool, error) {
			return true, errors.New("transient")
		})
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Do() should return an error when cancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("Do() did not return after context cancellation")
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	cfg := &Config{
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 4 * time.Second}, // capped
		{10, 4 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(cfg, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
