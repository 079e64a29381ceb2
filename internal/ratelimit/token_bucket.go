// Package ratelimit provides the token bucket used to bound inbound
// signaling message rates per connection.
package ratelimit

import (
	"sync"
	"time"
)

// nanosPerToken converts a rate in tokens/sec to the fixed-point
// nano-token representation used internally. Integer math avoids float
// rounding drift under sustained load.
const nanosPerToken = int64(time.Second)

// TokenBucket refills at an integer rate of tokens/sec up to a fixed
// capacity. The zero value is unusable; construct with NewTokenBucket.
type TokenBucket struct {
	clock Clock

	mu        sync.Mutex
	capNanos  int64
	rate      int64 // tokens/sec == nano-tokens/ns
	available int64 // nano-tokens
	last      time.Time
}

// NewTokenBucket returns a full bucket. Negative capacity or rate is
// treated as zero; a zero-capacity bucket rejects every positive request.
func NewTokenBucket(clock Clock, capacity, rate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		clock:     clock,
		capNanos:  saturatingTokens(capacity),
		rate:      rate,
		available: saturatingTokens(capacity),
		last:      clock.Now(),
	}
}

// Allow consumes n tokens if available; n <= 0 always succeeds.
func (b *TokenBucket) Allow(n int64) bool {
	if n <= 0 {
		return true
	}
	cost := saturatingTokens(n)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.available < cost {
		return false
	}
	b.available -= cost
	return true
}

func (b *TokenBucket) refill() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock went backwards; re-anchor without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now
	if elapsed <= 0 || b.rate <= 0 || b.available >= b.capNanos {
		return
	}

	// elapsed*rate can overflow for very long idle periods; anything past
	// the time needed to fill the bucket clamps to capacity.
	if need := b.capNanos - b.available; elapsed >= need/b.rate {
		b.available = b.capNanos
		return
	}
	b.available += elapsed * b.rate
}

func saturatingTokens(tokens int64) int64 {
	const maxInt64 = int64(^uint64(0) >> 1)
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanosPerToken {
		return maxInt64
	}
	return tokens * nanosPerToken
}
