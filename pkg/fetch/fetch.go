// Package fetch is the HTTP fetcher (C3): single and batch GET/HEAD with
// rate limiting, caching, retry-with-backoff, and failure classification.
// Grounded on the teacher's pkg/repository/backend.go (context-deadline
// http.Client usage, response buffering) generalized from a single fixed
// backend URL to arbitrary caller-supplied URLs.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/kraklabs/webconv/pkg/cache"
	"github.com/kraklabs/webconv/pkg/config"
	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/ratelimit"
	"github.com/kraklabs/webconv/pkg/telemetry"
	"github.com/kraklabs/webconv/pkg/xerrors"
)

// maxRedirects mirrors spec §6's "implementation-defined cap (default 10)".
const maxRedirects = 10

// log is resolved fresh on every call (rather than cached in a package
// var) so it always reflects the level/writer logging.Init set, even
// though Init typically runs after this package's vars are initialized.
func log() zerolog.Logger { return logging.Named("fetcher") }

// Fetcher is the single collaborator for all outbound HTTP in the
// pipeline; it owns the rate limiter and cache it was built with rather
// than reaching for process-wide singletons (spec §9).
type Fetcher struct {
	cfg     *config.Config
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	client  *http.Client
}

func New(cfg *config.Config, limiter *ratelimit.Limiter, c *cache.Cache) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		limiter: limiter,
		cache:   c,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Connection", "keep-alive")
}

// Get returns url's body, consulting the cache first (if enabled and
// useCache), then issuing a rate-limited GET with retry/backoff.
func (f *Fetcher) Get(ctx context.Context, url string, useCache bool) ([]byte, error) {
	if useCache && f.cfg.CacheEnabled {
		if body, ok := f.cache.Get(url); ok {
			telemetry.RecordCache(true)
			telemetry.Recent.Push(telemetry.RecentFetch{Domain: hostOf(url), FetchedAt: time.Now()})
			return body, nil
		}
		telemetry.RecordCache(false)
	}

	body, err := f.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	telemetry.Recent.Push(telemetry.RecentFetch{Domain: hostOf(url), FetchedAt: time.Now()})
	if f.cfg.CacheEnabled {
		if setErr := f.cache.Set(url, body); setErr != nil {
			log().Warn().Err(setErr).Str("url", url).Msg("[fetch] cache set failed")
		}
	}
	return body, nil
}

// Head issues a HEAD request (rate-limited, no retry, no cache) and
// returns the response headers.
func (f *Fetcher) Head(ctx context.Context, url string) (http.Header, error) {
	if err := f.limiter.AcquireForURL(ctx, url, 1); err != nil {
		return nil, err
	}
	deadline, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(deadline, http.MethodHead, url, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.HTTPError, "build HEAD request", err).With("url", url)
	}
	f.setHeaders(req)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, xerrors.New(xerrors.HTTPError, "non-2xx status").
			With("url", url).With("status", strconv.Itoa(resp.StatusCode))
	}
	return resp.Header, nil
}

// getWithRetry performs the single-request path used by Get: rate limit,
// fetch, classify, retry with exponential backoff through the scheduler
// (time.Timer honoring ctx) rather than a raw wall-clock sleep.
func (f *Fetcher) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	base := 250 * time.Millisecond

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := base * time.Duration(1<<uint(attempt-1))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if err := f.limiter.AcquireForURL(ctx, url, 1); err != nil {
			return nil, err
		}

		start := time.Now()
		body, err := f.doGet(ctx, url)
		if err == nil {
			log().Info().Str("url", url).Int("attempt", attempt).
				Str("elapsed", time.Since(start).String()).
				Str("size", humanize.Bytes(uint64(len(body)))).
				Msg("[fetch] request complete")
			return body, nil
		}

		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, xerrors.Wrap(xerrors.MaxRetriesExceeded, "retry budget exhausted", lastErr).
		With("url", url).With("max_retries", strconv.Itoa(f.cfg.MaxRetries))
}

func (f *Fetcher) doGet(ctx context.Context, url string) ([]byte, error) {
	deadline, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(deadline, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.HTTPError, "build GET request", err).With("url", url)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer resp.Body.Close()
	telemetry.RecordFetchForDomain(hostOf(url), resp.StatusCode)

	if resp.StatusCode >= 400 {
		kind := xerrors.HTTPError
		e := xerrors.New(kind, "non-2xx status").
			With("url", url).With("status", strconv.Itoa(resp.StatusCode))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, e.With("retryable", "true")
		}
		return nil, e
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, xerrors.Wrap(xerrors.HTTPError, "read response body", err).With("url", url)
	}
	return buf.Bytes(), nil
}

// classify maps a transport-level error to the spec §4.3 failure taxonomy.
func classify(url string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return xerrors.Wrap(xerrors.NetworkTimeout, "request timed out", err).With("url", url)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return xerrors.Wrap(xerrors.ConnectionFailed, "dns lookup failed", err).With("url", url)
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return xerrors.Wrap(xerrors.SSLError, "certificate verification failed", err).With("url", url)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return xerrors.Wrap(xerrors.ConnectionFailed, "connection failed", err).With("url", url)
	}
	return xerrors.Wrap(xerrors.ConnectionFailed, "request failed", err).With("url", url)
}

// retryable decides whether getWithRetry should try again. 4xx HTTP_ERROR
// and SSL_ERROR are terminal; everything else (timeouts, connection
// failures, 5xx/429 marked retryable) gets another attempt.
func retryable(err error) bool {
	kind, ok := xerrors.KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case xerrors.SSLError:
		return false
	case xerrors.HTTPError:
		var xe *xerrors.Error
		if errors.As(err, &xe) {
			return xe.Context["retryable"] == "true"
		}
		return false
	case xerrors.NetworkTimeout, xerrors.ConnectionFailed:
		return true
	default:
		return false
	}
}

// GetMany fetches every URL sequentially, recording per-URL failures
// rather than aborting the batch (spec §4.3).
func (f *Fetcher) GetMany(ctx context.Context, urls []string) map[string]Result {
	out := make(map[string]Result, len(urls))
	for _, u := range urls {
		body, err := f.Get(ctx, u, true)
		out[u] = Result{Body: body, Err: err}
	}
	return out
}

// Result is one URL's outcome in a batch fetch.
type Result struct {
	Body []byte
	Err  error
}

// OnProgress is called after each URL completes in GetManyParallel.
type OnProgress func(url string, done, total int)

// GetManyParallel fetches every URL concurrently, bounded globally by
// max_concurrent_requests and per-domain by maxPerDomain (spec §4.3/§6).
// A maxPerDomain of 0 means unbounded per-domain concurrency beyond the
// global cap and the rate limiter's own per-domain bucket.
func (f *Fetcher) GetManyParallel(ctx context.Context, urls []string, maxPerDomain int, onProgress OnProgress) map[string]Result {
	out := make(map[string]Result, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	globalSem := make(chan struct{}, f.cfg.MaxConcurrentRequests)
	domainSems := make(map[string]chan struct{})
	var domainMu sync.Mutex
	domainSemFor := func(host string) chan struct{} {
		if maxPerDomain <= 0 {
			return nil
		}
		domainMu.Lock()
		defer domainMu.Unlock()
		sem, ok := domainSems[host]
		if !ok {
			sem = make(chan struct{}, maxPerDomain)
			domainSems[host] = sem
		}
		return sem
	}

	total := len(urls)
	var done int32 = 0

	for _, u := range urls {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case globalSem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				out[u] = Result{Err: ctx.Err()}
				mu.Unlock()
				return
			}
			defer func() { <-globalSem }()

			host := hostOf(u)
			dsem := domainSemFor(host)
			if dsem != nil {
				select {
				case dsem <- struct{}{}:
					defer func() { <-dsem }()
				case <-ctx.Done():
					mu.Lock()
					out[u] = Result{Err: xerrors.New(xerrors.ConnectionFailed, "cancelled waiting for domain slot").
						With("domain", host).With("max_per_domain", strconv.Itoa(maxPerDomain))}
					mu.Unlock()
					return
				}
			}

			body, err := f.Get(ctx, u, true)
			d := int(atomic.AddInt32(&done, 1))
			mu.Lock()
			out[u] = Result{Body: body, Err: err}
			mu.Unlock()
			if onProgress != nil {
				onProgress(u, d, total)
			}
		}()
	}
	wg.Wait()
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
