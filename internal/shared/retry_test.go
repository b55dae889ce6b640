package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy(t *testing.T) {
	fast := RetryPolicy{MaxAttempts: 3, Timeout: time.Second, InitialInterval: time.Millisecond}

	t.Run("Succeeds After Transient Failures", func(t *testing.T) {
		calls := 0
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Stops After MaxAttempts", func(t *testing.T) {
		calls := 0
		want := errors.New("still down")
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("expected last error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Permanent Errors Are Not Retried", func(t *testing.T) {
		calls := 0
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return Permanent(ErrLookupFailed)
		})
		if !errors.Is(err, ErrLookupFailed) {
			t.Errorf("expected ErrLookupFailed, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("Attempt Carries Deadline", func(t *testing.T) {
		err := fast.Do(context.Background(), func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected per-attempt deadline")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("NewRetryPolicy Defaults", func(t *testing.T) {
		p := NewRetryPolicy(HTTPConfig{})
		if p.MaxAttempts != 3 || p.Timeout != 15*time.Second {
			t.Errorf("unexpected defaults: %+v", p)
		}

		p = NewRetryPolicy(HTTPConfig{MaxAttempts: 2, Timeout: time.Second})
		if p.MaxAttempts != 2 || p.Timeout != time.Second {
			t.Errorf("config not applied: %+v", p)
		}
	})
}
