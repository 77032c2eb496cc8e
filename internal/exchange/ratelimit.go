package exchange

import (
	"context"
	"sync"
	"time"
)

// TokenBucket paces requests: capacity tokens refilled at rate per second.
// Wait blocks until a token is available or the context ends.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewTokenBucket returns a full bucket.
func NewTokenBucket(capacity, perSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     perSecond,
		lastTime: time.Now(),
	}
}

// Wait consumes one token, sleeping as needed.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		b.tokens += now.Sub(b.lastTime).Seconds() * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastTime = now
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Pacer groups the adapter's request budgets: one bucket for the signed
// action channel, one for market-data reads.
type Pacer struct {
	Action *TokenBucket
	Book   *TokenBucket
}

// NewPacer uses the venue's published limits with headroom: actions at 8/s
// in bursts of 10, reads at 4/s in bursts of 5.
func NewPacer() *Pacer {
	return &Pacer{
		Action: NewTokenBucket(10, 8),
		Book:   NewTokenBucket(5, 4),
	}
}
