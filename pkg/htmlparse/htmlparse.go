// Package htmlparse is the streaming HTML parser (C5): incremental
// tag/text extraction plus DOM-query helpers (find_by_class, link
// extraction, content-block extraction). The document builder (C6) uses
// Parse. The teacher has no HTML parsing anywhere in its
// retrieval slice; this package is grounded entirely on the pack's
// enrichment files — other_examples' hermes streaming-parser (goquery
// over x/net/html, chunked reading, two-phase strict/lenient recovery)
// and unfurlist (goquery-based link/meta extraction) — both built on
// golang.org/x/net/html and github.com/PuerkitoBio/goquery.
package htmlparse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/kraklabs/webconv/pkg/xerrors"
)

// Element is a lightweight record of one element in document order
// (spec §4.5): tag, fully concatenated descendant text, tail text (text
// immediately following the element's closing tag, before the next tag),
// and its attributes.
type Element struct {
	Tag   string
	Text  string
	Tail  string
	Attrs map[string]string
}

// Link is an <a> extracted by ExtractLinks.
type Link struct {
	Href string
	Text string
}

// contentTags are the block-level tags extract_content_blocks filters to
// (spec §4.5).
var contentTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "td": true, "th": true, "blockquote": true, "pre": true, "code": true,
}

// Parse runs the two-phase contract of spec §4.5/§9: a strict goquery
// parse (x/net/html's tokenizer already tolerates unclosed tags and
// invalid encodings internally), falling back to a lenient recovery pass
// that strips null bytes and invalid UTF-8 before retrying. If recovery
// also fails, PARSING_FAILED is raised with the parser kind in context —
// but the function itself never panics, per spec §9's "recovery phase ...
// must never panic".
func Parse(raw []byte) (doc *goquery.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = parseLenient(raw)
		}
	}()

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err == nil {
		return doc, nil
	}
	return parseLenient(raw)
}

// parseLenient strips nulls and replaces invalid UTF-8 sequences before
// retrying; it is the fallback path spec §9 calls "allowed to discard
// content but must never panic".
func parseLenient(raw []byte) (doc *goquery.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.New(xerrors.ParsingFailed, "recovery parse panicked").
				With("parser", "htmlparse")
		}
	}()

	cleaned := sanitize(raw)
	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if parseErr != nil {
		return nil, xerrors.Wrap(xerrors.ParsingFailed, "lenient parse failed", parseErr).
			With("parser", "htmlparse")
	}
	return doc, nil
}

// sanitize strips NUL bytes (spec: "nulls (stripped)") and replaces
// invalid UTF-8 byte sequences with the Unicode replacement character
// (spec: "mixed/invalid encodings ... by replacing undecodable bytes").
func sanitize(raw []byte) string {
	s := strings.ReplaceAll(string(raw), "\x00", "")
	return strings.ToValidUTF8(s, "�")
}

// CountElements tallies how many elements of each tag name appear.
func CountElements(raw []byte) (map[string]int, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		counts[sel.Nodes[0].Data]++
	})
	return counts, nil
}

// ContentBlock is one recognized block extracted by ExtractContentBlocks.
type ContentBlock struct {
	Tag  string
	Text string
}

// ExtractContentBlocks returns every element matching the content-tag set
// in document order, with inter-element whitespace normalized to single
// spaces (spec §4.5).
func ExtractContentBlocks(raw []byte) ([]ContentBlock, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	var out []ContentBlock
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		tag := sel.Nodes[0].Data
		if !contentTags[tag] {
			return
		}
		out = append(out, ContentBlock{Tag: tag, Text: normalizeWhitespace(sel.Text())})
	})
	return out, nil
}

// FindByClass returns every element carrying className among its classes.
func FindByClass(raw []byte, className string) ([]Element, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	var out []Element
	doc.Find("." + className).Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		node := sel.Nodes[0]
		tail := ""
		if next := node.NextSibling; next != nil && next.Type == html.TextNode {
			tail = normalizeWhitespace(next.Data)
		}
		out = append(out, Element{
			Tag:   node.Data,
			Text:  normalizeWhitespace(sel.Text()),
			Tail:  tail,
			Attrs: attrsOf(sel),
		})
	})
	return out, nil
}

// ExtractLinks returns every <a href> with its visible text, in document
// order (grounded on unfurlist's link-extraction pass over goquery
// selections).
func ExtractLinks(raw []byte) ([]Link, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	var out []Link
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		out = append(out, Link{Href: href, Text: normalizeWhitespace(sel.Text())})
	})
	return out, nil
}

func attrsOf(sel *goquery.Selection) map[string]string {
	if len(sel.Nodes) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(sel.Nodes[0].Attr))
	for _, a := range sel.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Tokenize exposes the raw x/net/html token stream for callers that
// need single-pass, document-order traversal rather than goquery's
// DOM-query surface — the "streaming-capable" half of spec §4.5's
// contract, kept separate from the DOM-query helpers above so either can
// be reimplemented without touching the other.
func Tokenize(raw []byte) *html.Tokenizer {
	return html.NewTokenizer(strings.NewReader(sanitize(raw)))
}
