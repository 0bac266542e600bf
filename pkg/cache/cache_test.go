package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/webconv/pkg/config"
)

func newTestCache(t *testing.T, mutate func(*config.Config)) *Cache {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.CacheMemoryMaxItems = 2
	cfg.CacheDiskMaxBytes = 1 << 20
	cfg.CacheTTL = time.Hour
	if mutate != nil {
		mutate(cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestSetThenGetHits(t *testing.T) {
	c := newTestCache(t, nil)
	require.NoError(t, c.Set("https://example.com/a", []byte("body-a")))
	body, ok := c.Get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "body-a", string(body))
}

func TestGetMissForUnknownURL(t *testing.T) {
	c := newTestCache(t, nil)
	_, ok := c.Get("https://example.com/missing")
	assert.False(t, ok)
}

func TestHotTierEvictsLRU(t *testing.T) {
	c := newTestCache(t, nil) // memory max = 2
	require.NoError(t, c.Set("https://example.com/a", []byte("a")))
	require.NoError(t, c.Set("https://example.com/b", []byte("b")))
	// touch a so it's most-recently-used
	_, _ = c.Get("https://example.com/a")
	require.NoError(t, c.Set("https://example.com/c", []byte("c")))

	assert.LessOrEqual(t, c.Stats().HotItems, 2)
	// b was least-recently-used in the hot tier and should have been evicted
	_, hotOK := c.hotIndex["https://example.com/b"]
	assert.False(t, hotOK)
	// but it survives on the cold tier
	body, ok := c.Get("https://example.com/b")
	require.True(t, ok)
	assert.Equal(t, "b", string(body))
}

func TestTTLExpiredEntryTreatedAsMissAndDeleted(t *testing.T) {
	c := newTestCache(t, func(cfg *config.Config) { cfg.CacheTTL = time.Millisecond })
	require.NoError(t, c.Set("https://example.com/a", []byte("a")))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("https://example.com/a")
	assert.False(t, ok)

	// deleted, not just skipped: a second Get must still miss
	_, ok = c.Get("https://example.com/a")
	assert.False(t, ok)
}

func TestColdTierSurvivesHotEviction(t *testing.T) {
	c := newTestCache(t, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(urlFor(i), []byte("body")))
	}
	for i := 0; i < 5; i++ {
		body, ok := c.Get(urlFor(i))
		require.True(t, ok)
		assert.Equal(t, "body", string(body))
	}
}

func urlFor(i int) string {
	return "https://example.com/" + string(rune('a'+i))
}

func TestCorruptColdFileTreatedAsMiss(t *testing.T) {
	c := newTestCache(t, nil)
	require.NoError(t, c.Set("https://example.com/a", []byte("body")))

	// corrupt the underlying cold file directly
	path := c.coldPath("https://example.com/a")
	require.NoError(t, os.WriteFile(path, []byte("not-a-valid-header-line-without-newline"), 0o644))

	// evict from hot tier so Get must go to cold
	c.mu.Lock()
	if el, ok := c.hotIndex["https://example.com/a"]; ok {
		c.hotList.Remove(el)
		delete(c.hotIndex, "https://example.com/a")
	}
	c.mu.Unlock()

	_, ok := c.Get("https://example.com/a")
	assert.False(t, ok)
}

func TestClearRemovesAllWhenMaxAgeZero(t *testing.T) {
	c := newTestCache(t, nil)
	require.NoError(t, c.Set("https://example.com/a", []byte("a")))
	require.NoError(t, c.Set("https://example.com/b", []byte("b")))

	removed, err := c.Clear(0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 2)
	assert.Equal(t, 0, c.Stats().HotItems)
}

func TestDiskByteInvariantAfterEviction(t *testing.T) {
	c := newTestCache(t, func(cfg *config.Config) { cfg.CacheDiskMaxBytes = 10 })
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(urlFor(i), []byte("0123456789")))
	}
	assert.LessOrEqual(t, c.Stats().ColdBytes, int64(10))
}

func TestCacheDisabledIsNoop(t *testing.T) {
	c := newTestCache(t, func(cfg *config.Config) { cfg.CacheEnabled = false })
	require.NoError(t, c.Set("https://example.com/a", []byte("a")))
	_, ok := c.Get("https://example.com/a")
	assert.False(t, ok)
}
