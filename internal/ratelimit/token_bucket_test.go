package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucket_BurstAndRefill(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 5, 5)

	if !b.Allow(5) {
		t.Fatalf("full bucket must allow a burst of its capacity")
	}
	if b.Allow(1) {
		t.Fatalf("drained bucket must reject")
	}

	clk.Advance(200 * time.Millisecond) // refills one token at 5/sec
	if !b.Allow(1) {
		t.Fatalf("expected one token after refill")
	}
	if b.Allow(1) {
		t.Fatalf("only one token should have refilled")
	}
}

func TestTokenBucket_CapacityClamp(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 2, 1)

	b.Allow(2)
	clk.Advance(time.Hour)

	if !b.Allow(2) {
		t.Fatalf("bucket should refill to capacity")
	}
	if b.Allow(1) {
		t.Fatalf("bucket must not exceed capacity after a long idle period")
	}
}

func TestTokenBucket_ClockGoingBackwards(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	b := NewTokenBucket(clk, 1, 1)

	b.Allow(1)
	clk.Advance(-time.Minute)
	if b.Allow(1) {
		t.Fatalf("no refill when the clock moves backwards")
	}

	clk.Advance(time.Minute + time.Second)
	if !b.Allow(1) {
		t.Fatalf("refill should resume once time moves forward again")
	}
}

func TestTokenBucket_NonPositiveRequests(t *testing.T) {
	b := NewTokenBucket(&fakeClock{}, 0, 0)
	if !b.Allow(0) || !b.Allow(-3) {
		t.Fatalf("non-positive requests always succeed")
	}
	if b.Allow(1) {
		t.Fatalf("zero-capacity bucket rejects positive requests")
	}
}
