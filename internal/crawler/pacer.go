package crawler

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the inter-request delay between frontier dequeues. The
// first request passes immediately; each subsequent request is spaced by at
// least the configured delay, plus an optional random jitter fraction.
type Pacer struct {
	limiter *rate.Limiter
	delay   time.Duration
	jitter  float64
}

// NewPacer creates a pacer. A non-positive delay disables pacing.
func NewPacer(delay time.Duration, jitter float64) *Pacer {
	p := &Pacer{delay: delay, jitter: jitter}
	if delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return p
}

// Wait blocks until the pacing constraint is satisfied or the context is
// cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter > 0 {
		extra := time.Duration(rand.Float64() * p.jitter * float64(p.delay))
		if extra > 0 {
			timer := time.NewTimer(extra)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
