// Package telemetry is the in-process counter surface the `status` CLI
// command reads (spec §6/§9). Grounded on pkg/prometheus/metrics/meter.go
// (VictoriaMetrics counters/histograms keyed by a hand-built label
// string) and pkg/buffer/ring.go (a lock-free ring, here folded in and
// adapted to hold domain-typed RecentFetch records instead of bare hash
// keys); generalized from HTTP-response metrics to
// fetch/cache/chunk counters. Per spec's Non-goals there is no
// collector-push exporter — these are read back in-process only, never
// served over /metrics.
package telemetry

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const (
	fetchTotalMetric      = "webconv_fetch_requests_total"
	fetchErrorsMetric     = "webconv_fetch_errors_total"
	cacheHitsMetric       = "webconv_cache_hits_total"
	cacheMissesMetric     = "webconv_cache_misses_total"
	urlsConvertedMetric   = "webconv_urls_converted_total"
	urlsFailedMetric      = "webconv_urls_failed_total"
	chunksEmittedMetric   = "webconv_chunks_emitted_total"
	fetchDurationMsMetric = "webconv_fetch_duration_ms"
)

// RecentFetch is one entry in the recent-activity ring: which domain was
// hit and when, without keeping every fetched URL around. The `status`
// command does not print these records; they are readable in-process via
// Recent.Snapshot.
type RecentFetch struct {
	Domain    string
	FetchedAt time.Time
}

// recentRing is a lock-free fixed-size circular buffer of RecentFetch
// records, folded in from the teacher's standalone buffer.Ring (which held
// bare access-key hashes for its cache eviction heuristics) and adapted to
// telemetry's own domain type rather than re-vendored as-is.
type recentRing struct {
	entries []RecentFetch
	mask    uint64
	pos     uint64 // atomic
}

func newRecentRing(size int) *recentRing {
	if size&(size-1) != 0 {
		panic("recent ring size must be power of 2")
	}
	return &recentRing{
		entries: make([]RecentFetch, size),
		mask:    uint64(size - 1),
	}
}

func (r *recentRing) Push(f RecentFetch) {
	pos := atomic.AddUint64(&r.pos, 1) - 1
	r.entries[pos&r.mask] = f
}

func (r *recentRing) Snapshot() []RecentFetch {
	out := make([]RecentFetch, len(r.entries))
	copy(out, r.entries)
	return out
}

// Recent tracks the last 256 fetches, filled by pkg/fetch.
var Recent = newRecentRing(256)

// RecordFetch increments the fetch counters and records elapsed time.
func RecordFetch(ok bool, elapsed time.Duration) {
	metrics.GetOrCreateCounter(fetchTotalMetric).Inc()
	if !ok {
		metrics.GetOrCreateCounter(fetchErrorsMetric).Inc()
	}
	metrics.GetOrCreateHistogram(fetchDurationMsMetric).Update(float64(elapsed.Milliseconds()))
}

// RecordCache increments the hit/miss counters.
func RecordCache(hit bool) {
	if hit {
		metrics.GetOrCreateCounter(cacheHitsMetric).Inc()
	} else {
		metrics.GetOrCreateCounter(cacheMissesMetric).Inc()
	}
}

// RecordURL increments the per-URL pipeline outcome counters.
func RecordURL(ok bool) {
	if ok {
		metrics.GetOrCreateCounter(urlsConvertedMetric).Inc()
	} else {
		metrics.GetOrCreateCounter(urlsFailedMetric).Inc()
	}
}

// RecordChunks adds n to the chunks-emitted counter.
func RecordChunks(n int) {
	metrics.GetOrCreateCounter(chunksEmittedMetric).Add(n)
}

// Snapshot is the flat view `status` renders.
type Snapshot struct {
	FetchTotal    uint64
	FetchErrors   uint64
	CacheHits     uint64
	CacheMisses   uint64
	URLsConverted uint64
	URLsFailed    uint64
	ChunksEmitted uint64
}

// Read returns the current counter values. VictoriaMetrics counters only
// expose their value via GetOrCreateCounter, so reading and recording
// share the same accessor — reads never reset a counter.
func Read() Snapshot {
	return Snapshot{
		FetchTotal:    metrics.GetOrCreateCounter(fetchTotalMetric).Get(),
		FetchErrors:   metrics.GetOrCreateCounter(fetchErrorsMetric).Get(),
		CacheHits:     metrics.GetOrCreateCounter(cacheHitsMetric).Get(),
		CacheMisses:   metrics.GetOrCreateCounter(cacheMissesMetric).Get(),
		URLsConverted: metrics.GetOrCreateCounter(urlsConvertedMetric).Get(),
		URLsFailed:    metrics.GetOrCreateCounter(urlsFailedMetric).Get(),
		ChunksEmitted: metrics.GetOrCreateCounter(chunksEmittedMetric).Get(),
	}
}

// labelKey is a small helper kept for parity with the teacher's hand-built
// label-string counters, used if a caller needs a per-domain breakdown
// beyond the flat Snapshot above.
func labelKey(metric, label, value string) string {
	return metric + `{` + label + `="` + value + `"}`
}

// RecordFetchForDomain increments a per-domain fetch counter, mirroring
// meter.go's IncTotal path-labeled counters. Called from pkg/fetch's
// doGet for every response that reaches a status code. These per-domain
// counters are not part of Snapshot, so the `status` command does not
// print them; DomainFetchTotal reads them back.
func RecordFetchForDomain(domain string, statusCode int) {
	metrics.GetOrCreateCounter(labelKey(fetchTotalMetric, "domain", domain)).Inc()
	if statusCode >= 400 {
		metrics.GetOrCreateCounter(labelKey(fetchErrorsMetric, "domain", domain+"_"+strconv.Itoa(statusCode))).Inc()
	}
}

// DomainFetchTotal reads back the per-domain counter RecordFetchForDomain
// maintains, for in-process callers and for tests that need to observe it
// was actually incremented.
func DomainFetchTotal(domain string) uint64 {
	return metrics.GetOrCreateCounter(labelKey(fetchTotalMetric, "domain", domain)).Get()
}
