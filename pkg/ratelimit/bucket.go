// Package ratelimit is a lazily-refilled token bucket limiter, global and
// per-domain, built in the teacher's concurrency idiom of one mutex per
// shared resource (pkg/storage/lru/balancer.go locks per shard the same
// way) rather than a borrowed rate-limiting library — no example repo in
// the pack imports one (e.g. golang.org/x/time/rate never appears).
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a single token bucket. Refill is computed lazily on access so
// no background goroutine is needed per bucket.
type Bucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

func newBucket(rate, capacity float64) *Bucket {
	return &Bucket{rate: rate, capacity: capacity, tokens: capacity, lastRefill: time.Now()}
}

// Weight satisfies shardedmap.Weighted; every bucket counts as one entry
// towards its shard's length regardless of its rate/capacity.
func (b *Bucket) Weight() int64 { return 1 }

// refillLocked advances tokens to `now`. Caller holds b.mu.
func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// tryLocked reports whether n tokens are available after refill, without
// deducting them. Caller holds b.mu.
func (b *Bucket) tryLocked(now time.Time, n float64) bool {
	b.refillLocked(now)
	return b.tokens >= n
}

// deductLocked subtracts n tokens. Caller holds b.mu and has already
// verified availability via tryLocked.
func (b *Bucket) deductLocked(n float64) {
	b.tokens -= n
}

// TryAcquire attempts to take n tokens without blocking.
func (b *Bucket) TryAcquire(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if !b.tryLocked(now, n) {
		return false
	}
	b.deductLocked(n)
	return true
}

// TimeUntil estimates how long the caller must wait before n tokens are
// available, assuming no other acquirer intervenes.
func (b *Bucket) TimeUntil(n float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.refillLocked(now)
	if b.tokens >= n {
		return 0
	}
	missing := n - b.tokens
	secs := missing / b.rate
	return time.Duration(secs * float64(time.Second))
}

// BucketSnapshot is a point-in-time view of a bucket's state.
type BucketSnapshot struct {
	Available   float64
	Capacity    float64
	Rate        float64
	Utilization float64
}

func (b *Bucket) Snapshot() BucketSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	util := 0.0
	if b.capacity > 0 {
		util = 1 - b.tokens/b.capacity
	}
	return BucketSnapshot{Available: b.tokens, Capacity: b.capacity, Rate: b.rate, Utilization: util}
}
