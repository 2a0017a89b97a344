package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for request pacing
type Limiter interface {
	// Wait blocks until the next request may be sent
	Wait(ctx context.Context) error
}

// Pacer spaces requests a minimum interval apart and adds a random jitter
// after each spacing wait so the request cadence is not a fixed beat.
type Pacer struct {
	limiter     *rate.Limiter
	interval    time.Duration
	jitterRatio float64
	sleep       func(ctx context.Context, d time.Duration)
}

// NewPacer creates a pacer allowing requestsPerMinute requests, each followed
// by a jitter in [0, interval*jitterRatio]. A non-positive requestsPerMinute
// disables pacing entirely.
func NewPacer(requestsPerMinute int, jitterRatio float64) *Pacer {
	if jitterRatio < 0 {
		jitterRatio = 0
	}
	if jitterRatio > 1 {
		jitterRatio = 1
	}

	p := &Pacer{
		jitterRatio: jitterRatio,
		sleep:       sleepCtx,
	}
	if requestsPerMinute > 0 {
		p.interval = time.Minute / time.Duration(requestsPerMinute)
		p.limiter = rate.NewLimiter(rate.Every(p.interval), 1)
	}
	return p
}

// Wait blocks until the minimum inter-request interval has elapsed, then
// sleeps a random jitter. Returns early with the context's error when
// cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitterRatio > 0 {
		jitter := time.Duration(rand.Float64() * p.jitterRatio * float64(p.interval))
		p.sleep(ctx, jitter)
	}
	return ctx.Err()
}

// Interval returns the minimum spacing between requests
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
