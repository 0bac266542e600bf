// Package serialize holds the three independent Document emitters (C7):
// Markdown, JSON, and XML. Each is a pure function from *document.Document
// to a string; none depends on the others, per spec §4.7's "must be
// reimplementable without touching the others".
package serialize

import (
	"time"

	"github.com/kraklabs/webconv/pkg/document"
)

// Heading is one flattened heading (JSON/XML shared shape).
type Heading struct {
	Level int    `json:"level" xml:"level,attr"`
	Text  string `json:"text" xml:",chardata"`
}

// LinkRef is one flattened link.
type LinkRef struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// ImageRef is one flattened image.
type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ListRef is one flattened list.
type ListRef struct {
	Ordered bool     `json:"ordered"`
	Items   []string `json:"items"`
}

// CodeBlockRef is one flattened code block.
type CodeBlockRef struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Metadata is the optional trailer/header every serializer can attach.
type Metadata struct {
	SourceURL   string `json:"source_url"`
	GeneratedAt string `json:"generated_at"`
	Format      string `json:"format"`
}

// Options controls every serializer (spec §4.7).
type Options struct {
	// IncludeMetadata prepends/attaches a metadata block when true.
	IncludeMetadata bool
	// SourceURL and GeneratedAt populate Metadata when IncludeMetadata is set.
	SourceURL   string
	GeneratedAt time.Time
	// Indent requests pretty-printed JSON/XML output.
	Indent bool
}

func (o Options) metadata(format string) *Metadata {
	if !o.IncludeMetadata {
		return nil
	}
	ts := o.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Metadata{SourceURL: o.SourceURL, GeneratedAt: ts.UTC().Format(time.RFC3339), Format: format}
}

// flat is the shared flattening of a Document's blocks into the arrays
// the JSON/XML serializers both need (spec §4.7's JSON field list;
// the XML element list mirrors it).
type flat struct {
	Headings    []Heading
	Paragraphs  []string
	Links       []LinkRef
	Images      []ImageRef
	Lists       []ListRef
	CodeBlocks  []CodeBlockRef
	Blockquotes []string
}

func flatten(doc *document.Document) flat {
	var f flat
	for _, blk := range doc.Blocks {
		switch blk.Kind {
		case document.BlockHeading:
			f.Headings = append(f.Headings, Heading{Level: blk.Level, Text: document.PlainText(blk.Inline)})
			collectRefs(&f, blk.Inline)
		case document.BlockParagraph:
			f.Paragraphs = append(f.Paragraphs, document.PlainText(blk.Inline))
			collectRefs(&f, blk.Inline)
		case document.BlockBlockquote:
			f.Blockquotes = append(f.Blockquotes, document.PlainText(blk.Inline))
			collectRefs(&f, blk.Inline)
		case document.BlockUnorderedList:
			items := make([]string, len(blk.Items))
			for i, it := range blk.Items {
				items[i] = document.PlainText(it)
				collectRefs(&f, it)
			}
			f.Lists = append(f.Lists, ListRef{Ordered: false, Items: items})
		case document.BlockOrderedList:
			items := make([]string, len(blk.Items))
			for i, it := range blk.Items {
				items[i] = document.PlainText(it)
				collectRefs(&f, it)
			}
			f.Lists = append(f.Lists, ListRef{Ordered: true, Items: items})
		case document.BlockCodeBlock:
			f.CodeBlocks = append(f.CodeBlocks, CodeBlockRef{Language: blk.Language, Code: blk.Literal})
		case document.BlockImage:
			f.Images = append(f.Images, ImageRef{Src: blk.Src, Alt: blk.Alt})
		}
	}
	return f
}

// collectRefs walks an inline sequence for Link/InlineImage nodes so the
// JSON/XML "links"/"images" arrays include references nested in prose,
// not only standalone image blocks.
func collectRefs(f *flat, inline []document.Inline) {
	for _, in := range inline {
		switch in.Kind {
		case document.InlineLink:
			f.Links = append(f.Links, LinkRef{Href: in.Href, Text: document.PlainText(in.Children)})
			collectRefs(f, in.Children)
		case document.InlineImage:
			f.Images = append(f.Images, ImageRef{Src: in.Src, Alt: in.Alt})
		case document.InlineStrong, document.InlineEmphasis:
			collectRefs(f, in.Children)
		}
	}
}
