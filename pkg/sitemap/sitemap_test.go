package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/webconv/pkg/cache"
	"github.com/kraklabs/webconv/pkg/config"
	"github.com/kraklabs/webconv/pkg/fetch"
	"github.com/kraklabs/webconv/pkg/ratelimit"
)

func newDiscoverer(t *testing.T, mutate func(*config.Config)) *Discoverer {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.RequestsPerSecond = 1000
	cfg.BurstSize = 1000
	cfg.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	c, err := cache.New(cfg)
	require.NoError(t, err)
	f := fetch.New(cfg, ratelimit.New(cfg), c)
	return New(cfg, f)
}

func TestDiscoverFallsBackToWellKnownPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://x.test/a</loc><priority>0.8</priority></url>
  <url><loc>https://x.test/b</loc></url>
</urlset>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newDiscoverer(t, func(cfg *config.Config) { cfg.RespectRobotsTxt = false })
	urls, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://x.test/a", urls[0].Loc)
	require.NotNil(t, urls[0].Priority)
	assert.InDelta(t, 0.8, *urls[0].Priority, 0.001)
	assert.Nil(t, urls[1].Priority)
}

func TestDiscoverUsesRobotsTxtDirective(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /admin\nSitemap: http://%s/custom-sitemap.xml\n", r.Host)
	})
	mux.HandleFunc("/custom-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://x.test/only</loc></url></urlset>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newDiscoverer(t, func(cfg *config.Config) { cfg.RespectRobotsTxt = true })
	urls, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://x.test/only", urls[0].Loc)
}

func TestSitemapIndexRecursionDedupesAndFlattens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex>
  <sitemap><loc>http://%s/child-a.xml</loc></sitemap>
  <sitemap><loc>http://%s/child-b.xml</loc></sitemap>
</sitemapindex>`, r.Host, r.Host)
	})
	mux.HandleFunc("/child-a.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://x.test/A</loc></url></urlset>`)
	})
	mux.HandleFunc("/child-b.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://x.test/B</loc></url></urlset>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newDiscoverer(t, func(cfg *config.Config) { cfg.RespectRobotsTxt = false })
	urls, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://x.test/A", urls[0].Loc)
	assert.Equal(t, "https://x.test/B", urls[1].Loc)
}

func TestSitemapIndexSelfReferenceDoesNotLoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>http://%s/sitemap.xml</loc></sitemap></sitemapindex>`, r.Host)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newDiscoverer(t, func(cfg *config.Config) { cfg.RespectRobotsTxt = false })
	done := make(chan []URL, 1)
	go func() {
		urls, _ := d.Discover(context.Background(), srv.URL)
		done <- urls
	}()
	select {
	case urls := <-done:
		assert.Empty(t, urls)
	case <-time.After(3 * time.Second):
		t.Fatal("sitemap index cycle was not broken by the visited set")
	}
}

func TestUnparseablePriorityBecomesNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://x.test/a</loc><priority>not-a-number</priority></url></urlset>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := newDiscoverer(t, func(cfg *config.Config) { cfg.RespectRobotsTxt = false })
	urls, err := d.Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Nil(t, urls[0].Priority)
}

func TestFilterExcludeWinsOverInclude(t *testing.T) {
	ptr := func(f float64) *float64 { return &f }
	urls := []URL{
		{Loc: "https://x.test/blog/a", Priority: ptr(0.9)},
		{Loc: "https://x.test/blog/private/b", Priority: ptr(0.9)},
		{Loc: "https://x.test/other", Priority: ptr(0.1)},
	}
	f := Filter{
		Include: []*regexp.Regexp{regexp.MustCompile(`/blog/`)},
		Exclude: []*regexp.Regexp{regexp.MustCompile(`/private/`)},
	}
	out := f.apply(urls)
	require.Len(t, out, 1)
	assert.Equal(t, "https://x.test/blog/a", out[0].Loc)
}

func TestFilterMinPriorityNilPasses(t *testing.T) {
	min := 0.5
	urls := []URL{
		{Loc: "https://x.test/a", Priority: nil},
		{Loc: "https://x.test/b", Priority: floatPtr(0.1)},
	}
	f := Filter{MinPriority: &min}
	out := f.apply(urls)
	require.Len(t, out, 1)
	assert.Equal(t, "https://x.test/a", out[0].Loc)
}

func TestFilterLimitTruncatesPreservingOrder(t *testing.T) {
	urls := []URL{{Loc: "a"}, {Loc: "b"}, {Loc: "c"}}
	out := Filter{Limit: 2}.apply(urls)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Loc)
	assert.Equal(t, "b", out[1].Loc)
}

func floatPtr(f float64) *float64 { return &f }
