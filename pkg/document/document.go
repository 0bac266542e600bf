// Package document builds the canonical document model (C6) from raw
// HTML: a root with a title, base URL, and ordered block nodes, every
// reference resolved to an absolute URL. Grounded on pkg/htmlparse for
// the underlying parse and sanitize step; the block/inline node shapes
// are new to this domain (the teacher has no document model at all) but
// follow the flat tagged-union style common to Go tree types rather than
// an interface-per-variant hierarchy, keeping the three serializers (C7)
// simple type switches.
package document

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kraklabs/webconv/pkg/htmlparse"
)

// BlockKind discriminates Block.
type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockUnorderedList
	BlockOrderedList
	BlockBlockquote
	BlockCodeBlock
	BlockImage
	BlockRaw
)

// Block is one top-level document element (spec §3).
type Block struct {
	Kind BlockKind

	Level  int      // BlockHeading
	Inline []Inline // BlockHeading, BlockParagraph, BlockBlockquote

	Items [][]Inline // BlockUnorderedList, BlockOrderedList

	Language string // BlockCodeBlock, empty if unspecified
	Literal  string // BlockCodeBlock, newlines preserved

	Src, Alt string // BlockImage

	Raw string // BlockRaw
}

// InlineKind discriminates Inline.
type InlineKind int

const (
	InlineText InlineKind = iota
	InlineLink
	InlineImage
	InlineCode
	InlineStrong
	InlineEmphasis
)

// Inline is one phrase-level node (spec §3).
type Inline struct {
	Kind InlineKind

	Text string // InlineText, InlineCode

	Href string // InlineLink
	Src  string // InlineImage
	Alt  string // InlineImage

	Children []Inline // InlineLink, InlineStrong, InlineEmphasis
}

// Document is the parsed tree.
type Document struct {
	Title   string
	BaseURL string
	Blocks  []Block
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// PlainText flattens an inline sequence to its visible text, dropping all
// markup — used by serializers that need a bare string (JSON paragraphs,
// XML text content, list item strings).
func PlainText(inline []Inline) string {
	var b strings.Builder
	writePlainText(&b, inline)
	return collapse(b.String())
}

func writePlainText(b *strings.Builder, inline []Inline) {
	for _, in := range inline {
		switch in.Kind {
		case InlineText, InlineCode:
			b.WriteString(in.Text)
			b.WriteString(" ")
		case InlineImage:
			b.WriteString(in.Alt)
			b.WriteString(" ")
		case InlineLink, InlineStrong, InlineEmphasis:
			writePlainText(b, in.Children)
		}
	}
}

// Build parses rawHTML fetched from fetchURL into a Document, applying
// every rule in spec §4.6. It never returns a parse error for a
// catastrophic structural failure on its own account: htmlparse.Parse
// already falls back to lenient recovery and only raises PARSING_FAILED
// if both phases fail outright.
func Build(rawHTML []byte, fetchURL string) (*Document, error) {
	doc, err := htmlparse.Parse(rawHTML)
	if err != nil {
		return nil, err
	}

	base := resolveBase(doc, fetchURL)
	title := resolveTitle(doc)
	region := contentRegion(doc)

	var blocks []Block
	if region != nil {
		b := &builder{base: base}
		blocks = b.walkBlocks(region)
	}

	return &Document{Title: title, BaseURL: base.String(), Blocks: blocks}, nil
}

func resolveBase(doc *goquery.Document, fetchURL string) *url.URL {
	fetchBase, err := url.Parse(fetchURL)
	if err != nil {
		fetchBase = &url.URL{}
	}
	if sel := doc.Find("base[href]").First(); sel.Length() > 0 {
		if href, ok := sel.Attr("href"); ok {
			if resolved, err := fetchBase.Parse(href); err == nil {
				return resolved
			}
		}
	}
	return fetchBase
}

func resolveTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return "No Title"
}

// contentRegion picks the main-content subtree per spec §4.6's
// preference order: <main>, <article>, #content/.content, <body>.
func contentRegion(doc *goquery.Document) *html.Node {
	for _, sel := range []string{"main", "article", "#content", ".content"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s.Get(0)
		}
	}
	if b := doc.Find("body").First(); b.Length() > 0 {
		return b.Get(0)
	}
	return nil
}

// builder carries the resolved base URL through the recursive block/inline
// walk so href/src resolution stays a pure function of (base, raw).
type builder struct {
	base *url.URL
}

func (b *builder) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw // spec §4.6: preserve the original string verbatim on failure
	}
	return b.base.ResolveReference(ref).String()
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// inlineAtoms are the element atoms walkInline converts to a single Inline
// node (as opposed to recursing through transparently); shared with
// walkBlocks so loose inline runs at block level can be identified the
// same way.
var inlineAtoms = map[atom.Atom]bool{
	atom.A: true, atom.Code: true, atom.Strong: true, atom.B: true,
	atom.Em: true, atom.I: true, atom.Br: true,
}

// walkBlocks recurses through n's descendants in document order, emitting
// a Block for every recognized block-level element and otherwise
// descending transparently through containers (div, section, ...). Text
// and inline elements (a, strong, em, ...) that sit directly under a
// block container without a wrapping <p> — x/net/html does not auto-wrap
// these — are accumulated into a synthetic paragraph, flushed whenever a
// real block boundary is reached.
func (b *builder) walkBlocks(n *html.Node) []Block {
	var out []Block
	var pending []Inline
	flush := func() {
		if len(pending) > 0 {
			out = append(out, Block{Kind: BlockParagraph, Inline: pending})
			pending = nil
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if text := collapse(c.Data); text != "" {
				pending = append(pending, Inline{Kind: InlineText, Text: text})
			}
			continue
		}
		if c.Type != html.ElementNode {
			continue
		}
		if level, ok := headingLevel[c.DataAtom]; ok {
			flush()
			out = append(out, Block{Kind: BlockHeading, Level: level, Inline: b.walkInline(c)})
			continue
		}
		switch {
		case c.DataAtom == atom.P:
			flush()
			out = append(out, Block{Kind: BlockParagraph, Inline: b.walkInline(c)})
		case c.DataAtom == atom.Ul:
			flush()
			out = append(out, Block{Kind: BlockUnorderedList, Items: b.listItems(c)})
		case c.DataAtom == atom.Ol:
			flush()
			out = append(out, Block{Kind: BlockOrderedList, Items: b.listItems(c)})
		case c.DataAtom == atom.Blockquote:
			flush()
			out = append(out, Block{Kind: BlockBlockquote, Inline: b.walkInline(c)})
		case c.DataAtom == atom.Pre:
			flush()
			out = append(out, b.codeBlock(c))
		case c.DataAtom == atom.Img:
			flush()
			src, _ := attr(c, "src")
			alt, _ := attr(c, "alt")
			out = append(out, Block{Kind: BlockImage, Src: b.resolve(src), Alt: alt})
		case c.DataAtom == atom.Hr:
			flush()
			out = append(out, Block{Kind: BlockRaw, Raw: "---"})
		case inlineAtoms[c.DataAtom]:
			pending = append(pending, b.inlineNode(c))
		case containsBlockLevel(c):
			flush()
			out = append(out, b.walkBlocks(c)...)
		default:
			pending = append(pending, b.walkInline(c)...)
		}
	}
	flush()
	return out
}

// containsBlockLevel reports whether n has any descendant that walkBlocks
// would emit as its own Block, so an unrecognized container (div, span,
// header, ...) can be told apart from a pure inline wrapper.
func containsBlockLevel(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if _, ok := headingLevel[c.DataAtom]; ok {
			return true
		}
		switch c.DataAtom {
		case atom.P, atom.Ul, atom.Ol, atom.Blockquote, atom.Pre, atom.Img, atom.Hr:
			return true
		}
		if inlineAtoms[c.DataAtom] {
			continue
		}
		if containsBlockLevel(c) {
			return true
		}
	}
	return false
}

// listItems collects direct <li> children only; a nested <ul>/<ol> inside
// an item becomes inline text within that item rather than a nested list
// structure, per spec §4.6's explicit, tested rule.
func (b *builder) listItems(n *html.Node) [][]Inline {
	var items [][]Inline
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			items = append(items, b.walkInline(c))
		}
	}
	return items
}

// codeBlock implements the fence rule for <pre>: <pre><code class="language-X">
// yields a language; a <pre> without such a <code> child yields none.
// Only <pre> produces a code block; a <code> outside <pre> is handled as
// inline code by walkBlocks/walkInline. Newlines are preserved (never
// collapsed), unlike every other block's inline text.
func (b *builder) codeBlock(pre *html.Node) Block {
	var codeNode *html.Node
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			codeNode = c
			break
		}
	}
	source := pre
	lang := ""
	if codeNode != nil {
		source = codeNode
		if class, ok := attr(codeNode, "class"); ok {
			lang = languageFromClass(class)
		}
	}
	return Block{Kind: BlockCodeBlock, Language: lang, Literal: textContent(source)}
}

func languageFromClass(class string) string {
	for _, f := range strings.Fields(class) {
		if strings.HasPrefix(f, "language-") {
			return strings.TrimPrefix(f, "language-")
		}
	}
	return ""
}

// textContent concatenates descendant text verbatim (newlines preserved),
// for CodeBlock literals; inlineNode collapses its result for InlineCode.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Trim(b.String(), "\n")
}

// walkInline descends into n, producing the inline sequence spec §3
// describes: Text, Link, InlineImage, InlineCode, Strong, Emphasis.
// Unknown inline tags are flattened to their text by recursing through
// them transparently.
func (b *builder) walkInline(n *html.Node) []Inline {
	var out []Inline
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if text := collapse(c.Data); text != "" {
				out = append(out, Inline{Kind: InlineText, Text: text})
			}
		case html.ElementNode:
			if c.DataAtom == atom.Img || inlineAtoms[c.DataAtom] {
				out = append(out, b.inlineNode(c))
			} else {
				out = append(out, b.walkInline(c)...)
			}
		}
	}
	return out
}

// inlineNode converts a single element recognized as inline (a, img, code,
// strong/b, em/i, br) into its Inline representation. Shared by walkInline
// and walkBlocks' loose-inline accumulation so both treat these elements
// identically.
func (b *builder) inlineNode(c *html.Node) Inline {
	switch c.DataAtom {
	case atom.A:
		href, _ := attr(c, "href")
		return Inline{Kind: InlineLink, Href: b.resolve(href), Children: b.walkInline(c)}
	case atom.Img:
		src, _ := attr(c, "src")
		alt, _ := attr(c, "alt")
		return Inline{Kind: InlineImage, Src: b.resolve(src), Alt: alt}
	case atom.Code:
		return Inline{Kind: InlineCode, Text: collapse(textContent(c))}
	case atom.Strong, atom.B:
		return Inline{Kind: InlineStrong, Children: b.walkInline(c)}
	case atom.Em, atom.I:
		return Inline{Kind: InlineEmphasis, Children: b.walkInline(c)}
	case atom.Br:
		return Inline{Kind: InlineText, Text: " "}
	default:
		return Inline{Kind: InlineText}
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
