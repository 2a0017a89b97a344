package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "igcomments/pkg/errors"
)

func TestLinearBackoff(t *testing.T) {
	lb := &LinearBackoff{BaseDelay: time.Second, MaxDelay: 2500 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 2500 * time.Millisecond}, // capped
		{10, 2500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := lb.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 3 * time.Second}
	for _, attempt := range []int{1, 2, 5} {
		if got := cb.NextDelay(attempt); got != 3*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 3s", attempt, got)
		}
	}
}

func TestBackoffFunc(t *testing.T) {
	var strategy BackoffStrategy = BackoffFunc(func(attempt int) time.Duration {
		return time.Duration(attempt) * time.Second
	})
	if got := strategy.NextDelay(4); got != 4*time.Second {
		t.Errorf("NextDelay(4) = %v, want 4s", got)
	}
}

func TestWait(t *testing.T) {
	t.Run("ZeroDelayReturnsImmediately", func(t *testing.T) {
		if err := Wait(context.Background(), 0); err != nil {
			t.Errorf("Wait(0) = %v", err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Wait(ctx, time.Minute); err == nil {
			t.Error("Expected context error")
		}
	})
}

func TestDo(t *testing.T) {
	t.Run("SucceedsFirstTry", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return nil
		}, &Config{MaxAttempts: 3})
		if err != nil {
			t.Errorf("Expected success, got %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected 1 call, got %d", calls)
		}
	})

	t.Run("RetriesRetryableError", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}
			}
			return nil
		}, &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Millisecond}})
		if err != nil {
			t.Errorf("Expected eventual success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("Expected 3 calls, got %d", calls)
		}
	})

	t.Run("NonRetryableStops", func(t *testing.T) {
		calls := 0
		authErr := &errs.Error{Type: errs.ErrorTypeAuth, Message: "bad session"}
		err := Do(context.Background(), func() error {
			calls++
			return authErr
		}, &Config{MaxAttempts: 5})
		if !errors.Is(err, authErr) {
			t.Errorf("Expected auth error returned, got %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected 1 call for non-retryable error, got %d", calls)
		}
	})

	t.Run("ExhaustionWrapsLastError", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), func() error {
			calls++
			return &errs.Error{Type: errs.ErrorTypeServerError, Message: "boom", Code: 503}
		}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}})
		if err == nil {
			t.Fatal("Expected error after exhaustion")
		}
		if calls != 3 {
			t.Errorf("Expected 3 calls, got %d", calls)
		}
		var apiErr *errs.Error
		if !errors.As(err, &apiErr) {
			t.Errorf("Expected wrapped API error, got %v", err)
		}
	})
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Network", &errs.Error{Type: errs.ErrorTypeNetwork}, true},
		{"RateLimit", &errs.Error{Type: errs.ErrorTypeRateLimit}, true},
		{"ServerError", &errs.Error{Type: errs.ErrorTypeServerError}, true},
		{"Auth", &errs.Error{Type: errs.ErrorTypeAuth}, false},
		{"NotFound", &errs.Error{Type: errs.ErrorTypeNotFound}, false},
		{"Parsing", &errs.Error{Type: errs.ErrorTypeParsing}, false},
		{"ContextCanceled", context.Canceled, false},
		{"Unknown", errors.New("mystery"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
