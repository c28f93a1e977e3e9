package fetch

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outgoing requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket is a token bucket limiter shared by every gateway that talks
// to the same upstream. Safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket allows bursts of burst requests refilled at perSecond.
func NewTokenBucket(burst int, perSecond float64) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &TokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := b.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without blocking.
func (b *TokenBucket) TryAcquire() bool {
	_, ok := b.reserve()
	return ok
}

// reserve takes a token if one is available, otherwise returns how long
// until the next one.
func (b *TokenBucket) reserve() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	missing := 1 - b.tokens
	return time.Duration(missing / b.refillRate * float64(time.Second)), false
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (b *TokenBucket) refill() {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
}
