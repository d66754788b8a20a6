package coingecko

import (
	"context"
	"math/rand"
	"time"

	"github.com/mellowpine/coinpulse/internal/config"
)

// retryPolicy controls the request retry loop of the client.
// Jitter and sleep are injectable so tests can run the loop deterministically
// with a fixed jitter source and a recording no-op sleep.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	capDelay    time.Duration
	jitter      func() float64
	sleep       func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(cfg *config.Retry) retryPolicy {
	p := retryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   time.Duration(cfg.BaseDelaySec) * time.Second,
		capDelay:    time.Duration(cfg.CapDelaySec) * time.Second,
		jitter:      defaultJitter,
		sleep:       sleepCtx,
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 8
	}
	if p.baseDelay <= 0 {
		p.baseDelay = time.Second
	}
	if p.capDelay <= 0 {
		p.capDelay = 60 * time.Second
	}
	return p
}

// defaultJitter returns a multiplicative jitter factor in [0.7, 1.3] to
// desynchronize concurrent clients retrying against the same rate limit.
func defaultJitter() float64 {
	return 0.7 + 0.6*rand.Float64()
}

// backoff computes the wait before the next attempt. An explicit server
// provided delay takes priority over the exponential formula, both are
// bounded by the configured cap.
func (p retryPolicy) backoff(attempt int, serverDelay time.Duration) time.Duration {
	if serverDelay > 0 {
		if serverDelay > p.capDelay {
			return p.capDelay
		}
		return serverDelay
	}
	d := p.baseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.capDelay {
			d = p.capDelay
			break
		}
	}
	d = time.Duration(float64(d) * p.jitter())
	if d > p.capDelay {
		d = p.capDelay
	}
	return d
}

// sleepCtx blocks for the given duration or till the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	tick := time.NewTicker(d)
	defer tick.Stop()
	select {
	case <-tick.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
