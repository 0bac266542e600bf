// Package chunk is the semantic chunker (C8): heading-aware Markdown
// partitioning with overlap and stable, content-addressed ids. Heading
// segmentation walks a goldmark AST instead of hand-rolled regex (the
// teacher's go.mod already carries goldmark directly; this is the
// chunker exercising that same dependency per SPEC_FULL's domain stack).
package chunk

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/zeebo/xxh3"

	"github.com/kraklabs/webconv/pkg/config"
)

// Kind discriminates the three chunk shapes of spec §3.
type Kind string

const (
	KindSection      Kind = "section"
	KindContentChunk Kind = "content_chunk"
	KindTextChunk    Kind = "text_chunk"
)

// Chunk is one partition of a document's Markdown (spec §3).
type Chunk struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	SourceURL   string `json:"source_url"`
	Domain      string `json:"domain"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	WordCount   int    `json:"word_count"`
	CharCount   int    `json:"char_count"`
	Kind        Kind   `json:"kind"`
	Heading     string `json:"heading,omitempty"`
}

// charsPerWord is the hard-coded character-to-word ratio flagged by
// spec §9's Open Questions: a tunable knob, kept unexported rather than
// promoted to config.Config without a measured need.
const charsPerWord = 5

type section struct {
	heading string
	content string
}

// Chunk partitions markdown (fetched from sourceURL) into Chunks per
// spec §4.8. Empty input yields zero chunks.
func Chunk(markdown string, sourceURL string, cfg *config.Config) []Chunk {
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	domain := hostOf(sourceURL)
	sections, hasHeadings := segmentSections(markdown)

	var chunks []Chunk
	if !hasHeadings {
		chunks = windowChunks(markdown, "", KindTextChunk, cfg)
	} else {
		for _, s := range sections {
			if len([]rune(s.content)) <= cfg.ChunkSize {
				chunks = append(chunks, newChunk(s.content, s.heading, KindSection))
			} else {
				chunks = append(chunks, windowChunks(s.content, s.heading, KindContentChunk, cfg)...)
			}
		}
	}

	total := len(chunks)
	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = total
		chunks[i].SourceURL = sourceURL
		chunks[i].Domain = domain
		chunks[i].ID = stableID(sourceURL, chunks[i], i)
	}
	return chunks
}

func newChunk(content, heading string, kind Kind) Chunk {
	return Chunk{
		Content:   content,
		WordCount: len(strings.Fields(content)),
		CharCount: len([]rune(content)),
		Kind:      kind,
		Heading:   heading,
	}
}

// windowChunks splits content into overlapping word windows (spec §4.8
// step 2/3): words_per_chunk ≈ chunk_size/charsPerWord, overlap_words ≈
// chunk_overlap/charsPerWord, stride = words_per_chunk − overlap_words.
func windowChunks(content, heading string, kind Kind, cfg *config.Config) []Chunk {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	wordsPerChunk := cfg.ChunkSize / charsPerWord
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	overlapWords := cfg.ChunkOverlap / charsPerWord
	stride := wordsPerChunk - overlapWords
	if stride < 1 {
		stride = 1
	}

	var out []Chunk
	for start := 0; start < len(words); start += stride {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		out = append(out, newChunk(text, heading, kind))
		if end == len(words) {
			break
		}
	}
	return out
}

// segmentSections splits markdown at ATX-style headings (spec §4.8 step
// 1): a section begins at each heading line and runs to the next
// heading; content preceding the first heading is its own section with
// an empty heading. hasHeadings is false when the document contains no
// heading at all, selecting the non-Markdown word-window path instead.
func segmentSections(markdown string) ([]section, bool) {
	source := []byte(markdown)
	reader := text.NewReader(source)
	root := goldmark.DefaultParser().Parse(reader)

	type mark struct {
		start int
		text  string
	}
	var headings []mark
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			start := 0
			if lines := h.Lines(); lines.Len() > 0 {
				start = lines.At(0).Start
				// Lines() covers only the heading text; back up to the start
				// of its line so the "#" marker stays with its own section.
				for start > 0 && source[start-1] != '\n' {
					start--
				}
			}
			headings = append(headings, mark{start: start, text: nodeText(h, source)})
		}
		return ast.WalkContinue, nil
	})

	if len(headings) == 0 {
		return nil, false
	}

	var sections []section
	if headings[0].start > 0 {
		lead := strings.TrimSpace(string(source[:headings[0].start]))
		if lead != "" {
			sections = append(sections, section{heading: "", content: lead})
		}
	}
	for i, h := range headings {
		end := len(source)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		sections = append(sections, section{
			heading: h.text,
			content: strings.TrimRight(string(source[h.start:end]), "\n "),
		})
	}
	return sections, true
}

// nodeText concatenates the text of inline leaf nodes under n, used to
// extract a heading's plain text without re-walking goldmark's
// deprecated Node.Text helper.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch v := n.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func hostOf(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// stableID is a deterministic digest of (source_url, heading-or-kind-tag,
// chunk_index), per spec §3/§8: re-chunking the same input reproduces
// the same ids.
func stableID(sourceURL string, c Chunk, index int) string {
	tag := c.Heading
	if tag == "" {
		tag = string(c.Kind)
	}
	key := sourceURL + "|" + tag + "|" + strconv.Itoa(index)
	h := xxh3.HashString(key)
	return strconv.FormatUint(h, 16)
}
