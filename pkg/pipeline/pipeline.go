// Package pipeline is the orchestrator (C9): wires fetch → convert →
// (chunk?) → persist for single-URL, list, sitemap, and parallel
// variants. Per-URL failures are logged and skipped rather than aborting
// the batch (spec §7's propagation policy — only CONFIG_INVALID halts
// the process, and that is enforced earlier, at config construction).
package pipeline

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kraklabs/webconv/pkg/cache"
	"github.com/kraklabs/webconv/pkg/chunk"
	"github.com/kraklabs/webconv/pkg/config"
	"github.com/kraklabs/webconv/pkg/document"
	"github.com/kraklabs/webconv/pkg/fetch"
	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/ratelimit"
	"github.com/kraklabs/webconv/pkg/serialize"
	"github.com/kraklabs/webconv/pkg/sitemap"
	"github.com/kraklabs/webconv/pkg/telemetry"
	"github.com/kraklabs/webconv/pkg/xerrors"
)

// log is resolved fresh on every call rather than cached in a package var,
// so it always reflects the level/writer logging.Init set at runtime.
func log() zerolog.Logger { return logging.Named("pipeline") }

// Options controls one conversion call (spec §6's CLI surface, minus the
// CLI itself).
type Options struct {
	Format          string // config.FormatMarkdown/JSON/XML
	IncludeMetadata bool
	Indent          bool

	Chunk       bool
	ChunkDir    string
	ChunkFormat chunk.Format

	UseCache bool
}

// Pipeline is the single collaborator wiring every component together;
// constructed once per process (or per test) rather than resolved
// through package-level singletons, per spec §9.
type Pipeline struct {
	cfg     *config.Config
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	fetcher *fetch.Fetcher
	sitemap *sitemap.Discoverer
}

func New(cfg *config.Config) (*Pipeline, error) {
	c, err := cache.New(cfg)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(cfg)
	fetcher := fetch.New(cfg, limiter, c)
	return &Pipeline{
		cfg:     cfg,
		limiter: limiter,
		cache:   c,
		fetcher: fetcher,
		sitemap: sitemap.New(cfg, fetcher),
	}, nil
}

// ConvertURL fetches url, serializes it in the requested format, writes
// it to outputDir, optionally chunks the Markdown rendering, and returns
// the output file path.
func (p *Pipeline) ConvertURL(ctx context.Context, url string, outputDir string, opts Options) (string, error) {
	start := time.Now()
	body, err := p.fetcher.Get(ctx, url, opts.UseCache)
	telemetry.RecordFetch(err == nil, time.Since(start))
	if err != nil {
		telemetry.RecordURL(false)
		return "", err
	}

	doc, err := document.Build(body, url)
	if err != nil {
		telemetry.RecordURL(false)
		return "", err
	}

	serOpts := serialize.Options{
		IncludeMetadata: opts.IncludeMetadata,
		SourceURL:       url,
		GeneratedAt:     time.Now(),
		Indent:          opts.Indent,
	}

	rendered, ext := render(doc, opts.Format, serOpts)
	outPath := filepath.Join(outputDir, safeFilename(url, ext))
	if err := writeFileAtomic(outPath, []byte(rendered)); err != nil {
		telemetry.RecordURL(false)
		return "", err
	}

	if opts.Chunk {
		if err := p.chunkURL(doc, url, outputDir, opts); err != nil {
			log().Warn().Err(err).Str("url", url).Msg("[pipeline] chunking failed")
		}
	}

	telemetry.RecordURL(true)
	return outPath, nil
}

// chunkURL always chunks the Markdown rendering (even when the primary
// output is JSON/XML), per spec §4.9, writing to a per-URL subdirectory
// so filenames never collide across URLs.
func (p *Pipeline) chunkURL(doc *document.Document, url, outputDir string, opts Options) error {
	md := serialize.Markdown(doc, serialize.Options{})
	chunks := chunk.Chunk(md, url, p.cfg)
	if len(chunks) == 0 {
		return nil
	}
	dir := filepath.Join(opts.chunkDirOr(outputDir), chunkSubdir(url))
	if err := chunk.WriteTo(dir, chunks, opts.ChunkFormat); err != nil {
		return err
	}
	telemetry.RecordChunks(len(chunks))
	return nil
}

func (o Options) chunkDirOr(outputDir string) string {
	if o.ChunkDir != "" {
		return o.ChunkDir
	}
	return filepath.Join(outputDir, "chunks")
}

func chunkSubdir(url string) string {
	name := safeFilename(url, "")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func render(doc *document.Document, format string, opts serialize.Options) (string, string) {
	switch format {
	case config.FormatJSON:
		return serialize.JSON(doc, opts), ".json"
	case config.FormatXML:
		return serialize.XML(doc, opts), ".xml"
	default:
		return serialize.Markdown(doc, opts), ".md"
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// safeFilename derives a filesystem-safe name from a URL's path (spec
// §4.9): collapse "/" to "_", sanitize reserved characters, apply ext,
// and fall back to "index" for an empty path.
func safeFilename(rawURL, ext string) string {
	path := rawURL
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		rest := rawURL[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			path = rest[slash+1:]
		} else {
			path = ""
		}
	}
	path = strings.Trim(path, "/")
	if path == "" {
		path = "index"
	}
	path = strings.ReplaceAll(path, "/", "_")
	path = unsafeFilenameChars.ReplaceAllString(path, "_")
	return path + ext
}

// ConvertURLList runs ConvertURL sequentially over urls, returning the
// ones that completed successfully.
func (p *Pipeline) ConvertURLList(ctx context.Context, urls []string, outputDir string, opts Options) []string {
	var ok []string
	for _, u := range urls {
		if _, err := p.ConvertURL(ctx, u, outputDir, opts); err != nil {
			log().Warn().Err(err).Str("url", u).Msg("[pipeline] conversion failed, skipping")
			continue
		}
		ok = append(ok, u)
	}
	return ok
}

// OnProgress reports one URL's completion during a parallel batch.
type OnProgress func(url string, done, total int)

// ConvertURLListParallel fans ConvertURL out across workerCap goroutines,
// returning the successful URLs in input order.
func (p *Pipeline) ConvertURLListParallel(ctx context.Context, urls []string, outputDir string, opts Options, workerCap int, onProgress OnProgress) []string {
	if workerCap <= 0 {
		workerCap = p.cfg.MaxConcurrentRequests
	}
	results := make([]bool, len(urls))
	sem := make(chan struct{}, workerCap)
	var wg sync.WaitGroup
	var doneCount int32 = 0
	var mu sync.Mutex
	total := len(urls)

	for i, u := range urls {
		i, u := i, u
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			_, err := p.ConvertURL(ctx, u, outputDir, opts)
			results[i] = err == nil
			if err != nil {
				log().Warn().Err(err).Str("url", u).Msg("[pipeline] conversion failed, skipping")
			}

			mu.Lock()
			doneCount++
			d := int(doneCount)
			mu.Unlock()
			if onProgress != nil {
				onProgress(u, d, total)
			}
		}()
	}
	wg.Wait()

	var ok []string
	for i, u := range urls {
		if results[i] {
			ok = append(ok, u)
		}
	}
	return ok
}

// ConvertSitemap discovers URLs from a sitemap rooted at baseURL, filters
// them, and converts the result either sequentially or in parallel.
func (p *Pipeline) ConvertSitemap(ctx context.Context, baseURL string, filter sitemap.Filter, outputDir string, opts Options, parallel bool, workerCap int) ([]string, error) {
	urls, err := p.sitemap.Filter(ctx, baseURL, filter)
	if err != nil {
		return nil, err
	}
	locs := make([]string, len(urls))
	for i, u := range urls {
		locs[i] = u.Loc
	}
	if parallel {
		return p.ConvertURLListParallel(ctx, locs, outputDir, opts, workerCap, nil), nil
	}
	return p.ConvertURLList(ctx, locs, outputDir, opts), nil
}

// Status surfaces the live config and counters for the `status`/`config`
// CLI commands (spec §6/SPEC_FULL's supplemented features).
type Status struct {
	Config    *config.Config
	Telemetry telemetry.Snapshot
	Cache     cache.Stats
}

func (p *Pipeline) Status() Status {
	return Status{Config: p.cfg, Telemetry: telemetry.Read(), Cache: p.cache.Stats()}
}

// writeFileAtomic writes data to path via write-to-temp-then-rename
// (grounded on pkg/storage/dumper.go), and removes the temp file if the
// write or the rename fails, so a partially written file never appears
// at path. It takes no context and is not interrupted by cancellation.
func writeFileAtomic(path string, data []byte) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, data); err != nil {
		removeFile(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "write output file", err).With("path", path)
	}
	if err := renameFile(tmp, path); err != nil {
		removeFile(tmp)
		return xerrors.Wrap(xerrors.CacheIO, "rename output file", err).With("path", path)
	}
	return nil
}
