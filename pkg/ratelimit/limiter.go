package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/kraklabs/webconv/pkg/config"
	"github.com/kraklabs/webconv/pkg/shardedmap"
)

// Limiter is the global bucket plus a lazily-populated per-domain bucket
// registry. Per-domain buckets inherit their rate/capacity from
// config.PerDomainRPS (falling back to the global rate) the first time a
// given host is seen.
type Limiter struct {
	global     *Bucket
	perDomain  *shardedmap.Map[*Bucket]
	domainRate float64
	domainCap  float64

	namesMu sync.RWMutex
	names   map[uint64]string // bucket hash key -> host, for Snapshot
}

func New(cfg *config.Config) *Limiter {
	domainRate := cfg.PerDomainRPS
	if domainRate <= 0 {
		domainRate = cfg.RequestsPerSecond
	}
	return &Limiter{
		global:     newBucket(cfg.RequestsPerSecond, float64(cfg.BurstSize)),
		perDomain:  shardedmap.New[*Bucket](16),
		domainRate: domainRate,
		domainCap:  float64(cfg.BurstSize),
		names:      make(map[uint64]string),
	}
}

func host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

func (l *Limiter) domainBucket(h string) *Bucket {
	key := xxh3.HashString(h)
	b, created := l.perDomain.GetOrCreate(key, func() *Bucket {
		return newBucket(l.domainRate, l.domainCap)
	})
	if created {
		l.namesMu.Lock()
		l.names[key] = h
		l.namesMu.Unlock()
	}
	return b
}

// Acquire blocks until n tokens are available on the global bucket only.
func (l *Limiter) Acquire(ctx context.Context, n float64) error {
	return waitFor(ctx, func() (bool, time.Duration) {
		if l.global.TryAcquire(n) {
			return true, 0
		}
		return false, l.global.TimeUntil(n)
	})
}

// AcquireForURL blocks until n tokens are available on both the global
// bucket and the per-domain bucket for host(rawURL), deducting from both
// atomically: if the domain bucket would succeed but the global bucket
// would not (or vice versa), neither is touched.
func (l *Limiter) AcquireForURL(ctx context.Context, rawURL string, n float64) error {
	domain := l.domainBucket(host(rawURL))
	return waitFor(ctx, func() (bool, time.Duration) {
		if tryAcquireBoth(l.global, domain, n) {
			return true, 0
		}
		wait := l.global.TimeUntil(n)
		if dw := domain.TimeUntil(n); dw > wait {
			wait = dw
		}
		return false, wait
	})
}

// TryAcquireForURL is the non-blocking counterpart of AcquireForURL.
func (l *Limiter) TryAcquireForURL(rawURL string, n float64) bool {
	domain := l.domainBucket(host(rawURL))
	return tryAcquireBoth(l.global, domain, n)
}

// TimeUntilForURL estimates the wait before AcquireForURL would succeed.
func (l *Limiter) TimeUntilForURL(rawURL string, n float64) time.Duration {
	domain := l.domainBucket(host(rawURL))
	wait := l.global.TimeUntil(n)
	if dw := domain.TimeUntil(n); dw > wait {
		wait = dw
	}
	return wait
}

// tryAcquireBoth checks and deducts from both buckets as a single unit,
// locking global before domain (a fixed order, since both are reachable
// in either acquire path, avoids lock-order inversion deadlocks).
func tryAcquireBoth(global, domain *Bucket, n float64) bool {
	global.mu.Lock()
	defer global.mu.Unlock()
	domain.mu.Lock()
	defer domain.mu.Unlock()

	now := time.Now()
	if !global.tryLocked(now, n) || !domain.tryLocked(now, n) {
		return false
	}
	global.deductLocked(n)
	domain.deductLocked(n)
	return true
}

// waitFor retries attempt until it reports success, sleeping the
// estimated wait between tries; it honors ctx cancellation the way the
// orchestrator's backoff sleeps must (spec §5: "Rate-limiter waits honor
// cancellation").
func waitFor(ctx context.Context, attempt func() (bool, time.Duration)) error {
	for {
		ok, wait := attempt()
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = time.Millisecond
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

// LimiterSnapshot reports the current global and per-domain bucket states.
type LimiterSnapshot struct {
	Global  BucketSnapshot
	Domains map[string]BucketSnapshot
}

// Snapshot walks every known per-domain bucket.
func (l *Limiter) Snapshot() LimiterSnapshot {
	snap := LimiterSnapshot{Global: l.global.Snapshot(), Domains: map[string]BucketSnapshot{}}
	l.namesMu.RLock()
	defer l.namesMu.RUnlock()
	for key, name := range l.names {
		if b, ok := l.perDomain.Get(key); ok {
			snap.Domains[name] = b.Snapshot()
		}
	}
	return snap
}
