package serialize

import (
	"encoding/json"

	"github.com/kraklabs/webconv/pkg/document"
)

// jsonDocument mirrors spec §4.7's JSON object field-by-field.
type jsonDocument struct {
	Title       string         `json:"title"`
	BaseURL     string         `json:"base_url"`
	Headings    []Heading      `json:"headings"`
	Paragraphs  []string       `json:"paragraphs"`
	Links       []LinkRef      `json:"links"`
	Images      []ImageRef     `json:"images"`
	Lists       []ListRef      `json:"lists"`
	CodeBlocks  []CodeBlockRef `json:"code_blocks"`
	Blockquotes []string       `json:"blockquotes"`
	Metadata    *Metadata      `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
	RawContent  string         `json:"raw_content,omitempty"`
}

// JSON renders doc per spec §4.7. Arrays are never nil in the output —
// an empty Document still produces empty (not null) arrays, matching the
// "serializers succeed" boundary behavior of spec §8.
func JSON(doc *document.Document, opts Options) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = jsonError(doc, r)
		}
	}()

	f := flatten(doc)
	jd := jsonDocument{
		Title:       doc.Title,
		BaseURL:     doc.BaseURL,
		Headings:    nonNil(f.Headings),
		Paragraphs:  nonNilStr(f.Paragraphs),
		Links:       nonNilLinks(f.Links),
		Images:      nonNilImages(f.Images),
		Lists:       nonNilLists(f.Lists),
		CodeBlocks:  nonNilCode(f.CodeBlocks),
		Blockquotes: nonNilStr(f.Blockquotes),
		Metadata:    opts.metadata("json"),
	}

	var raw []byte
	var err error
	if opts.Indent {
		raw, err = json.MarshalIndent(jd, "", "  ")
	} else {
		raw, err = json.Marshal(jd)
	}
	if err != nil {
		return jsonError(doc, err)
	}
	return string(raw) + "\n"
}

func jsonError(doc *document.Document, r any) string {
	raw, _ := json.MarshalIndent(jsonDocument{
		Error:      errString(r),
		RawContent: rawContentOf(doc),
	}, "", "  ")
	return string(raw) + "\n"
}

func nonNil(s []Heading) []Heading {
	if s == nil {
		return []Heading{}
	}
	return s
}
func nonNilStr(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
func nonNilLinks(s []LinkRef) []LinkRef {
	if s == nil {
		return []LinkRef{}
	}
	return s
}
func nonNilImages(s []ImageRef) []ImageRef {
	if s == nil {
		return []ImageRef{}
	}
	return s
}
func nonNilLists(s []ListRef) []ListRef {
	if s == nil {
		return []ListRef{}
	}
	return s
}
func nonNilCode(s []CodeBlockRef) []CodeBlockRef {
	if s == nil {
		return []CodeBlockRef{}
	}
	return s
}
