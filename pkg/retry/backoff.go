package retry

import (
	"context"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait before the given attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// LinearBackoff scales a base delay linearly with the attempt number
type LinearBackoff struct {
	// BaseDelay is multiplied by the attempt number
	BaseDelay time.Duration
	// MaxDelay caps the computed delay; zero means no cap
	MaxDelay time.Duration
}

// NextDelay calculates the next delay with linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := lb.BaseDelay * time.Duration(attempt)
	if lb.MaxDelay > 0 && delay > lb.MaxDelay {
		delay = lb.MaxDelay
	}
	return delay
}

// BackoffFunc adapts a plain function to the BackoffStrategy interface
type BackoffFunc func(attempt int) time.Duration

// NextDelay calls the wrapped function
func (f BackoffFunc) NextDelay(attempt int) time.Duration {
	return f(attempt)
}

// ConstantBackoff waits the same delay before every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until the context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
