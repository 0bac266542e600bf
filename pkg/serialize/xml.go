package serialize

import (
	"encoding/xml"

	"github.com/kraklabs/webconv/pkg/document"
)

// xmlDocument is the root element. Its name is fixed to "document"
// (lowercase) per DESIGN.md's Open Question decision, used consistently
// here and by xmlError below.
type xmlDocument struct {
	XMLName     xml.Name       `xml:"document"`
	Title       string         `xml:"title"`
	BaseURL     string         `xml:"base_url"`
	Headings    xmlHeadings    `xml:"headings"`
	Paragraphs  xmlParagraphs  `xml:"paragraphs"`
	Links       xmlLinks       `xml:"links"`
	Images      xmlImages      `xml:"images"`
	Lists       xmlLists       `xml:"lists"`
	CodeBlocks  xmlCodeBlocks  `xml:"code_blocks"`
	Blockquotes xmlBlockquotes `xml:"blockquotes"`
	Metadata    *xmlMetadata   `xml:"metadata,omitempty"`
}

type xmlHeadings struct {
	Heading []xmlHeading `xml:"heading"`
}
type xmlHeading struct {
	Level int    `xml:"level,attr"`
	Text  string `xml:",chardata"`
}
type xmlParagraphs struct {
	Paragraph []string `xml:"paragraph"`
}
type xmlLinks struct {
	Link []xmlLink `xml:"link"`
}
type xmlLink struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}
type xmlImages struct {
	Image []xmlImage `xml:"image"`
}
type xmlImage struct {
	Src string `xml:"src,attr"`
	Alt string `xml:"alt,attr"`
}
type xmlLists struct {
	List []xmlList `xml:"list"`
}
type xmlList struct {
	Ordered bool     `xml:"ordered,attr"`
	Item    []string `xml:"item"`
}
type xmlCodeBlocks struct {
	CodeBlock []xmlCodeBlock `xml:"code_block"`
}
type xmlCodeBlock struct {
	Language string `xml:"language,attr"`
	Code     string `xml:",cdata"`
}
type xmlBlockquotes struct {
	Blockquote []string `xml:"blockquote"`
}
type xmlMetadata struct {
	SourceURL   string `xml:"source_url"`
	GeneratedAt string `xml:"generated_at"`
	Format      string `xml:"format"`
}

type xmlErrorDocument struct {
	XMLName    xml.Name `xml:"document"`
	Error      string   `xml:"error"`
	RawContent string   `xml:"raw_content"`
}

// XML renders doc per spec §4.7: an XML declaration followed by the
// root <document> element, pretty-printed when opts.Indent is set.
func XML(doc *document.Document, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = xmlError(doc, r)
		}
	}()

	f := flatten(doc)
	xd := xmlDocument{
		Title:       doc.Title,
		BaseURL:     doc.BaseURL,
		Headings:    xmlHeadings{toXMLHeadings(f.Headings)},
		Paragraphs:  xmlParagraphs{f.Paragraphs},
		Links:       xmlLinks{toXMLLinks(f.Links)},
		Images:      xmlImages{toXMLImages(f.Images)},
		Lists:       xmlLists{toXMLLists(f.Lists)},
		CodeBlocks:  xmlCodeBlocks{toXMLCode(f.CodeBlocks)},
		Blockquotes: xmlBlockquotes{f.Blockquotes},
	}
	if md := opts.metadata("xml"); md != nil {
		xd.Metadata = &xmlMetadata{SourceURL: md.SourceURL, GeneratedAt: md.GeneratedAt, Format: md.Format}
	}

	var raw []byte
	var err error
	if opts.Indent {
		raw, err = xml.MarshalIndent(xd, "", "  ")
	} else {
		raw, err = xml.Marshal(xd)
	}
	if err != nil {
		return xmlError(doc, err)
	}
	return xml.Header + string(raw) + "\n"
}

func xmlError(doc *document.Document, r any) string {
	raw, _ := xml.MarshalIndent(xmlErrorDocument{
		Error:      errString(r),
		RawContent: rawContentOf(doc),
	}, "", "  ")
	return xml.Header + string(raw) + "\n"
}

func toXMLHeadings(h []Heading) []xmlHeading {
	out := make([]xmlHeading, len(h))
	for i, v := range h {
		out[i] = xmlHeading{Level: v.Level, Text: v.Text}
	}
	return out
}
func toXMLLinks(l []LinkRef) []xmlLink {
	out := make([]xmlLink, len(l))
	for i, v := range l {
		out[i] = xmlLink{Href: v.Href, Text: v.Text}
	}
	return out
}
func toXMLImages(im []ImageRef) []xmlImage {
	out := make([]xmlImage, len(im))
	for i, v := range im {
		out[i] = xmlImage{Src: v.Src, Alt: v.Alt}
	}
	return out
}
func toXMLLists(ls []ListRef) []xmlList {
	out := make([]xmlList, len(ls))
	for i, v := range ls {
		out[i] = xmlList{Ordered: v.Ordered, Item: v.Items}
	}
	return out
}
func toXMLCode(cb []CodeBlockRef) []xmlCodeBlock {
	out := make([]xmlCodeBlock, len(cb))
	for i, v := range cb {
		out[i] = xmlCodeBlock{Language: v.Language, Code: v.Code}
	}
	return out
}
