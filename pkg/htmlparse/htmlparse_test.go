package htmlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const samplePage = `<html><body>
<h1 class="title">Heading</h1>
<p>First <b>paragraph</b>.</p>
<p class="note">Second paragraph.</p>
<ul><li>one</li><li>two</li></ul>
<a href="/a">link A</a>
<a href="https://x.test/b">link B</a>
</body></html>`

func TestParseValidHTMLSucceeds(t *testing.T) {
	doc, err := Parse([]byte(samplePage))
	require.NoError(t, err)
	assert.Equal(t, "Heading", doc.Find("h1").First().Text())
}

func TestParseStripsNullBytes(t *testing.T) {
	raw := []byte("<html><body><p>hello\x00world</p></body></html>")
	doc, err := Parse(raw)
	require.NoError(t, err)
	assert.NotContains(t, doc.Find("p").First().Text(), "\x00")
}

func TestCountElementsTalliesTagNames(t *testing.T) {
	counts, err := CountElements([]byte(samplePage))
	require.NoError(t, err)
	assert.Equal(t, 2, counts["p"])
	assert.Equal(t, 2, counts["li"])
	assert.Equal(t, 2, counts["a"])
}

func TestExtractContentBlocksFiltersToContentTags(t *testing.T) {
	blocks, err := ExtractContentBlocks([]byte(samplePage))
	require.NoError(t, err)
	var tags []string
	for _, b := range blocks {
		tags = append(tags, b.Tag)
	}
	assert.Contains(t, tags, "p")
	assert.Contains(t, tags, "li")
	assert.Contains(t, tags, "h1")
}

func TestExtractContentBlocksNormalizesWhitespace(t *testing.T) {
	raw := []byte("<p>too   many\n\nspaces</p>")
	blocks, err := ExtractContentBlocks(raw)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "too many spaces", blocks[0].Text)
}

func TestFindByClassReturnsMatchingElements(t *testing.T) {
	els, err := FindByClass([]byte(samplePage), "note")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "p", els[0].Tag)
	assert.Equal(t, "Second paragraph.", els[0].Text)
}

func TestFindByClassNoMatchReturnsEmpty(t *testing.T) {
	els, err := FindByClass([]byte(samplePage), "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestExtractLinksReturnsHrefAndText(t *testing.T) {
	links, err := ExtractLinks([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "/a", links[0].Href)
	assert.Equal(t, "link A", links[0].Text)
	assert.Equal(t, "https://x.test/b", links[1].Href)
}

func TestTokenizeYieldsTokenStream(t *testing.T) {
	z := Tokenize([]byte(samplePage))
	var sawStartTag bool
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.StartTagToken {
			name, _ := z.TagName()
			if string(name) == "h1" {
				sawStartTag = true
			}
		}
	}
	assert.True(t, sawStartTag)
}
