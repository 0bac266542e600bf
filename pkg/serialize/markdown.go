package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kraklabs/webconv/pkg/document"
)

// Markdown renders doc per spec §4.7: title as `# …`, headings as
// `#{level} text`, blocks separated by one blank line, and an optional
// metadata header.
func Markdown(doc *document.Document, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = markdownError(doc, r)
		}
	}()

	var parts []string
	if md := opts.metadata("markdown"); md != nil {
		parts = append(parts, markdownMetadata(*md))
	}
	if doc.Title != "" {
		parts = append(parts, "# "+doc.Title)
	}
	for _, blk := range doc.Blocks {
		if s := markdownBlock(blk); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func markdownMetadata(md Metadata) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "source_url: %s\n", md.SourceURL)
	fmt.Fprintf(&b, "generated_at: %s\n", md.GeneratedAt)
	b.WriteString("---")
	return b.String()
}

func markdownBlock(blk document.Block) string {
	switch blk.Kind {
	case document.BlockHeading:
		return strings.Repeat("#", clampHeading(blk.Level)) + " " + markdownInline(blk.Inline)
	case document.BlockParagraph:
		return markdownInline(blk.Inline)
	case document.BlockBlockquote:
		lines := strings.Split(markdownInline(blk.Inline), "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	case document.BlockUnorderedList:
		lines := make([]string, len(blk.Items))
		for i, it := range blk.Items {
			lines[i] = "- " + markdownInline(it)
		}
		return strings.Join(lines, "\n")
	case document.BlockOrderedList:
		lines := make([]string, len(blk.Items))
		for i, it := range blk.Items {
			lines[i] = strconv.Itoa(i+1) + ". " + markdownInline(it)
		}
		return strings.Join(lines, "\n")
	case document.BlockCodeBlock:
		return "```" + blk.Language + "\n" + blk.Literal + "\n```"
	case document.BlockImage:
		return "![" + blk.Alt + "](" + blk.Src + ")"
	case document.BlockRaw:
		return blk.Raw
	default:
		return ""
	}
}

func clampHeading(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

func markdownInline(inline []document.Inline) string {
	var b strings.Builder
	for _, in := range inline {
		switch in.Kind {
		case document.InlineText:
			b.WriteString(in.Text)
		case document.InlineCode:
			b.WriteString("`" + in.Text + "`")
		case document.InlineLink:
			b.WriteString("[" + markdownInline(in.Children) + "](" + in.Href + ")")
		case document.InlineImage:
			b.WriteString("![" + in.Alt + "](" + in.Src + ")")
		case document.InlineStrong:
			b.WriteString("**" + markdownInline(in.Children) + "**")
		case document.InlineEmphasis:
			b.WriteString("*" + markdownInline(in.Children) + "*")
		}
	}
	return b.String()
}

// markdownError is the CONVERSION_FAILED escape hatch (spec §4.7): never
// raise, emit a document describing the failure instead.
func markdownError(doc *document.Document, r any) string {
	return fmt.Sprintf("# Conversion Error\n\n> %v\n\n```\n%+v\n```\n", r, doc)
}
