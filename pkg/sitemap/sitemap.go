// Package sitemap is the sitemap discovery component (C4): robots.txt
// probing, sitemapindex/urlset XML parsing with recursive traversal, and
// URL filtering. No teacher file parses sitemaps or robots.txt directives,
// so this package is built fresh in the config/xerrors packages' strict,
// validated-record idiom, using only the standard library's encoding/xml
// (no third-party XML library appears anywhere in the retrieval pack).
package sitemap

import (
	"context"
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kraklabs/webconv/pkg/config"
	"github.com/kraklabs/webconv/pkg/fetch"
)

// URL is a single sitemap entry (spec §3).
type URL struct {
	Loc        string
	LastMod    string
	ChangeFreq string
	Priority   *float64
}

// fallbackCandidates are probed when robots.txt yields nothing (or
// respect_robots_txt is off), in order.
var fallbackCandidates = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemaps/sitemap.xml",
}

// Discoverer finds and parses sitemaps reachable from a base URL.
type Discoverer struct {
	cfg     *config.Config
	fetcher *fetch.Fetcher
}

func New(cfg *config.Config, fetcher *fetch.Fetcher) *Discoverer {
	return &Discoverer{cfg: cfg, fetcher: fetcher}
}

// Discover returns every URL reachable from baseURL's sitemap(s), per
// spec §4.4: robots.txt Sitemap: directives first (if configured),
// falling back to well-known paths, recursing through sitemap indexes
// with cycle protection via a visited set.
func (d *Discoverer) Discover(ctx context.Context, baseURL string) ([]URL, error) {
	candidates := d.candidates(ctx, baseURL)
	visited := make(map[string]bool)
	var out []URL
	seenURL := make(map[string]bool)

	for _, candidate := range candidates {
		entries := d.fetchAndParse(ctx, candidate, visited)
		for _, e := range entries {
			if seenURL[e.Loc] {
				continue
			}
			seenURL[e.Loc] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *Discoverer) candidates(ctx context.Context, baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")

	if d.cfg.RespectRobotsTxt {
		if sitemaps := d.robotsSitemaps(ctx, base); len(sitemaps) > 0 {
			return sitemaps
		}
	}

	out := make([]string, len(fallbackCandidates))
	for i, path := range fallbackCandidates {
		out[i] = base + path
	}
	return out
}

var sitemapDirectiveRe = regexp.MustCompile(`(?i)^sitemap:\s*(\S+)`)

// robotsSitemaps fetches /robots.txt and extracts every `Sitemap:`
// directive, line-wise; other directives are ignored per spec §6.
func (d *Discoverer) robotsSitemaps(ctx context.Context, base string) []string {
	body, err := d.fetcher.Get(ctx, base+"/robots.txt", true)
	if err != nil {
		log.Warn().Err(err).Str("base", base).Msg("[sitemap] robots.txt fetch failed")
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if m := sitemapDirectiveRe.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// xmlURLSet / xmlSitemapIndex mirror the urlset/sitemapindex schemas.
// Namespaces are honored implicitly: encoding/xml matches local names
// regardless of the xmlns prefix used.
type xmlURLSet struct {
	XMLName xml.Name    `xml:"urlset"`
	URLs    []xmlURLEntry `xml:"url"`
}

type xmlURLEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []xmlIndexEntry `xml:"sitemap"`
}

type xmlIndexEntry struct {
	Loc string `xml:"loc"`
}

// rootProbe is decoded first purely to read the root element's local
// name, since Go's encoding/xml can't unmarshal into two candidate root
// types without knowing which one matched.
type rootProbe struct {
	XMLName xml.Name
}

// fetchAndParse fetches loc, detects sitemapindex vs urlset by root tag,
// and recurses for indexes. Any failure (fetch or parse) downgrades to a
// warning and an empty result (spec §4.4) rather than aborting discovery.
func (d *Discoverer) fetchAndParse(ctx context.Context, loc string, visited map[string]bool) []URL {
	if visited[loc] {
		return nil
	}
	visited[loc] = true

	body, err := d.fetcher.Get(ctx, loc, true)
	if err != nil {
		log.Warn().Err(err).Str("loc", loc).Msg("[sitemap] fetch failed, skipping")
		return nil
	}

	var probe rootProbe
	if err := xml.Unmarshal(body, &probe); err != nil {
		log.Warn().Err(err).Str("loc", loc).Msg("[sitemap] xml parse failed, skipping")
		return nil
	}

	switch strings.ToLower(probe.XMLName.Local) {
	case "sitemapindex":
		var idx xmlSitemapIndex
		if err := xml.Unmarshal(body, &idx); err != nil {
			log.Warn().Err(err).Str("loc", loc).Msg("[sitemap] sitemapindex parse failed, skipping")
			return nil
		}
		var out []URL
		for _, child := range idx.Sitemaps {
			out = append(out, d.fetchAndParse(ctx, child.Loc, visited)...)
		}
		return out
	case "urlset":
		var set xmlURLSet
		if err := xml.Unmarshal(body, &set); err != nil {
			log.Warn().Err(err).Str("loc", loc).Msg("[sitemap] urlset parse failed, skipping")
			return nil
		}
		out := make([]URL, 0, len(set.URLs))
		for _, e := range set.URLs {
			out = append(out, URL{
				Loc:        e.Loc,
				LastMod:    e.LastMod,
				ChangeFreq: e.ChangeFreq,
				Priority:   parsePriority(e.Priority),
			})
		}
		return out
	default:
		log.Warn().Str("loc", loc).Str("root", probe.XMLName.Local).Msg("[sitemap] unrecognized root element, skipping")
		return nil
	}
}

// parsePriority never hard-fails: an unparseable value becomes nil
// (spec §4.4).
func parsePriority(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Filter applies spec §4.4's filter semantics: include is any-match,
// exclude is any-match and wins over include, priority of nil passes the
// min-priority gate, and limit truncates after filtering while
// preserving input order.
type Filter struct {
	MinPriority *float64
	Include     []*regexp.Regexp
	Exclude     []*regexp.Regexp
	Limit       int
}

func (f Filter) apply(urls []URL) []URL {
	var out []URL
	for _, u := range urls {
		if f.excluded(u.Loc) {
			continue
		}
		if len(f.Include) > 0 && !f.included(u.Loc) {
			continue
		}
		if f.MinPriority != nil && u.Priority != nil && *u.Priority < *f.MinPriority {
			continue
		}
		out = append(out, u)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func (f Filter) included(loc string) bool {
	for _, re := range f.Include {
		if re.MatchString(loc) {
			return true
		}
	}
	return false
}

func (f Filter) excluded(loc string) bool {
	for _, re := range f.Exclude {
		if re.MatchString(loc) {
			return true
		}
	}
	return false
}

// Filter discovers baseURL's sitemap URLs and applies f.
func (d *Discoverer) Filter(ctx context.Context, baseURL string, f Filter) ([]URL, error) {
	urls, err := d.Discover(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	return f.apply(urls), nil
}
