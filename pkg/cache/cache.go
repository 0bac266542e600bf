// Package cache is the two-tier request cache (C2): an in-memory LRU hot
// tier and an on-disk cold tier, both keyed by URL. It follows the
// teacher's cache idiom — pkg/storage/storage.go's Storage interface,
// pkg/storage/lru/storage.go's Weight-aware eviction, pkg/storage/dumper.go's
// atomic write-to-temp-then-rename — but trades the teacher's sharded,
// multi-tenant, Response-typed cache for the spec's single-process,
// byte-blob, URL-keyed one.
package cache

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/kraklabs/webconv/pkg/config"
	"github.com/kraklabs/webconv/pkg/list"
	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/xerrors"
)

// log is resolved fresh on every call rather than cached in a package var,
// so it always reflects the level/writer logging.Init set at runtime.
func log() zerolog.Logger { return logging.Named("cache") }

// gzipThreshold mirrors the teacher's model/data.go: bodies at or above
// this size are gzip-compressed on disk.
const gzipThreshold = 1024

// Entry is a single cached body plus its lifecycle metadata (spec §3).
type Entry struct {
	Body       []byte
	CreatedAt  time.Time
	TTL        time.Duration
	LastAccess time.Time
}

func (e Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.CreatedAt.Add(e.TTL))
}

type hotItem struct {
	key   string
	entry Entry
}

// Cache is the two-tier store described by spec §4.2. Hot-tier mutation
// (including the promotion a Get performs) happens under a single lock,
// matching spec §5's "Cache hot tier: shared; LRU mutations under a single
// lock; reads promote LRU position and thus also mutate."
type Cache struct {
	cfg *config.Config

	mu       sync.Mutex
	hotIndex map[string]*list.Element[*hotItem]
	hotList  *list.List[*hotItem]

	coldDir   string
	coldMu    sync.Mutex
	coldBytes int64
}

// New prepares the cache directory (if cache_enabled) and an empty hot
// tier. It walks the cold tier once (sumColdBytes) to seed the byte
// counter from existing file sizes; after that the counter is updated as
// entries are written and evicted.
func New(cfg *config.Config) (*Cache, error) {
	c := &Cache{
		cfg:      cfg,
		hotIndex: make(map[string]*list.Element[*hotItem]),
		hotList:  list.New[*hotItem](),
		coldDir:  cfg.CacheDir,
	}
	if !cfg.CacheEnabled {
		return c, nil
	}
	if err := os.MkdirAll(c.coldDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CacheIO, "create cache dir", err).With("dir", c.coldDir)
	}
	c.coldBytes = c.sumColdBytes()
	return c, nil
}

func (c *Cache) coldPath(url string) string {
	h := xxh3.HashString(url)
	shard := h & 0xff
	name := keyHashName(h)
	return filepath.Join(c.coldDir, hexByte(byte(shard)), name)
}

func hexByte(b byte) string {
	const hexdigits = "0123456789abcdef"
	return string([]byte{hexdigits[b>>4], hexdigits[b&0xf]})
}

func keyHashName(h uint64) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexdigits[h&0xf]
		h >>= 4
	}
	return string(buf) + ".cache"
}

// coldHeader is the on-disk envelope: created_at/ttl metadata followed by
// the (possibly gzip-compressed) body.
type coldHeader struct {
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
	TTL        int64     `json:"ttl_seconds"`
	Compressed bool      `json:"compressed"`
}

// Get returns the cached body for url, promoting a cold hit back into the
// hot tier. Expired entries are treated as misses and deleted from both
// tiers, per spec §4.2/§8.
func (c *Cache) Get(url string) ([]byte, bool) {
	if !c.cfg.CacheEnabled {
		return nil, false
	}
	now := time.Now()

	c.mu.Lock()
	if el, ok := c.hotIndex[url]; ok {
		item := el.Value()
		if item.entry.expired(now) {
			c.hotList.Remove(el)
			delete(c.hotIndex, url)
			c.mu.Unlock()
			c.deleteCold(url)
			return nil, false
		}
		item.entry.LastAccess = now
		c.hotList.MoveToFront(el)
		body := item.entry.Body
		c.mu.Unlock()
		return body, true
	}
	c.mu.Unlock()

	entry, ok := c.readCold(url)
	if !ok {
		return nil, false
	}
	if entry.expired(now) {
		c.deleteCold(url)
		return nil, false
	}
	c.promote(url, entry)
	return entry.Body, true
}

// Set writes body to both tiers under url, enforcing the configured size
// limits (LRU eviction in hot, oldest-mtime eviction in cold).
func (c *Cache) Set(url string, body []byte) error {
	if !c.cfg.CacheEnabled {
		return nil
	}
	entry := Entry{Body: body, CreatedAt: time.Now(), TTL: c.cfg.CacheTTL, LastAccess: time.Now()}
	c.promote(url, entry)
	return c.writeCold(url, entry)
}

func (c *Cache) promote(url string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.hotIndex[url]; ok {
		el.Value().entry = entry
		c.hotList.MoveToFront(el)
		return
	}
	el := c.hotList.PushFront(&hotItem{key: url, entry: entry})
	c.hotIndex[url] = el
	for c.hotList.Len() > c.cfg.CacheMemoryMaxItems {
		back := c.hotList.Back()
		if back == nil {
			break
		}
		delete(c.hotIndex, back.Value().key)
		c.hotList.Remove(back)
	}
}

func (c *Cache) readCold(url string) (Entry, bool) {
	path := c.coldPath(url)
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, false
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		_ = os.Remove(path)
		return Entry{}, false
	}
	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		log().Warn().Str("path", path).Msg("[cache] corrupt header, treating as miss")
		_ = os.Remove(path)
		return Entry{}, false
	}
	var hdr coldHeader
	if err := json.Unmarshal(raw[:nl], &hdr); err != nil {
		log().Warn().Err(err).Str("path", path).Msg("[cache] corrupt header, treating as miss")
		_ = os.Remove(path)
		return Entry{}, false
	}
	payload := raw[nl+1:]
	if hdr.Compressed {
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			_ = os.Remove(path)
			return Entry{}, false
		}
		defer gr.Close()
		payload, err = io.ReadAll(gr)
		if err != nil {
			_ = os.Remove(path)
			return Entry{}, false
		}
	}
	return Entry{
		Body:      payload,
		CreatedAt: hdr.CreatedAt,
		TTL:       time.Duration(hdr.TTL) * time.Second,
	}, true
}

func (c *Cache) writeCold(url string, entry Entry) error {
	path := c.coldPath(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Wrap(xerrors.CacheIO, "create shard dir", err).With("url", url)
	}

	payload := entry.Body
	compressed := false
	if len(payload) >= gzipThreshold {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err == nil && gw.Close() == nil {
			payload = buf.Bytes()
			compressed = true
		}
	}

	hdr := coldHeader{URL: url, CreatedAt: entry.CreatedAt, TTL: int64(entry.TTL / time.Second), Compressed: compressed}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return xerrors.Wrap(xerrors.CacheIO, "create temp file", err).With("path", tmp)
	}
	hdrBytes, err := json.Marshal(hdr)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "encode header", err)
	}
	hdrBytes = append(hdrBytes, '\n')
	if _, err := f.Write(hdrBytes); err != nil {
		f.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "write header", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "write payload", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "close temp file", err)
	}
	var prevSize int64
	if fi, err := os.Stat(path); err == nil {
		prevSize = fi.Size()
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "rename temp file", err).With("path", path)
	}

	c.coldMu.Lock()
	c.coldBytes += int64(len(hdrBytes)+len(payload)) - prevSize
	c.coldMu.Unlock()
	c.evictColdIfNeeded()
	return nil
}

func (c *Cache) deleteCold(url string) {
	path := c.coldPath(url)
	if fi, err := os.Stat(path); err == nil {
		c.coldMu.Lock()
		c.coldBytes -= fi.Size()
		if c.coldBytes < 0 {
			c.coldBytes = 0
		}
		c.coldMu.Unlock()
	}
	_ = os.Remove(path)
}

// sumColdBytes walks the cold directory once (at New) to seed the byte
// counter without trusting any prior process's bookkeeping.
func (c *Cache) sumColdBytes() int64 {
	var total int64
	_ = filepath.Walk(c.coldDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}

type coldFile struct {
	path    string
	size    int64
	modTime time.Time
}

// evictColdIfNeeded removes the oldest-mtime cold files until total bytes
// fit within cache_disk_max_bytes (spec §8: bytes(cold) ≤ cache_disk_max_bytes).
func (c *Cache) evictColdIfNeeded() {
	c.coldMu.Lock()
	over := c.coldBytes > c.cfg.CacheDiskMaxBytes
	c.coldMu.Unlock()
	if !over {
		return
	}

	var files []coldFile
	_ = filepath.Walk(c.coldDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		files = append(files, coldFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	c.coldMu.Lock()
	defer c.coldMu.Unlock()
	for _, f := range files {
		if c.coldBytes <= c.cfg.CacheDiskMaxBytes {
			break
		}
		if err := os.Remove(f.path); err == nil {
			c.coldBytes -= f.size
		}
	}
	if c.coldBytes < 0 {
		c.coldBytes = 0
	}
}

// Clear removes every entry (both tiers) older than maxAge, or every
// entry if maxAge is zero, returning the count removed.
func (c *Cache) Clear(maxAge time.Duration) (int, error) {
	c.mu.Lock()
	removed := 0
	now := time.Now()
	for url, el := range c.hotIndex {
		item := el.Value()
		if maxAge == 0 || now.Sub(item.entry.CreatedAt) >= maxAge {
			c.hotList.Remove(el)
			delete(c.hotIndex, url)
			removed++
		}
	}
	c.mu.Unlock()

	if c.cfg.CacheDir == "" {
		return removed, nil
	}
	err := filepath.Walk(c.coldDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if maxAge == 0 || now.Sub(info.ModTime()) >= maxAge {
			if rmErr := os.Remove(path); rmErr == nil {
				c.coldMu.Lock()
				c.coldBytes -= info.Size()
				c.coldMu.Unlock()
				removed++
			}
		}
		return nil
	})
	if c.coldBytes < 0 {
		c.coldBytes = 0
	}
	return removed, err
}

// Stats reports a snapshot of tier occupancy for the status CLI command.
type Stats struct {
	HotItems  int
	ColdBytes int64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	hot := c.hotList.Len()
	c.mu.Unlock()
	c.coldMu.Lock()
	cold := c.coldBytes
	c.coldMu.Unlock()
	return Stats{HotItems: hot, ColdBytes: cold}
}
