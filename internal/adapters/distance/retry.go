package distance

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// RetryPolicy controls how the routing client retries transient failures.
// The wait before attempt n+1 is 2^n * BaseDelay plus a uniform jitter in
// [0, MaxJitter). Rand and Sleep are injectable so tests run deterministic
// and instant.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRetryPolicy returns the default policy: 3 attempts, 250ms base,
// 250ms jitter, real timers. seed drives the jitter source.
func NewRetryPolicy(seed uint64) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxJitter:   250 * time.Millisecond,
		Sleep:       sleepCtx,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<attempt) * p.BaseDelay

	if p.MaxJitter > 0 {
		p.mu.Lock()
		if p.rng == nil {
			p.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		}
		d += time.Duration(p.rng.Int64N(int64(p.MaxJitter)))
		p.mu.Unlock()
	}

	return d
}

func (p *RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.Sleep == nil {
		return sleepCtx(ctx, d)
	}
	return p.Sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
