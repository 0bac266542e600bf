package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTitleFallback(t *testing.T) {
	doc, err := Build([]byte(`<html><head><title>T</title></head><body><h1>H1</h1><p>Hello</p></body></html>`), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "T", doc.Title)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, BlockHeading, doc.Blocks[0].Kind)
	assert.Equal(t, 1, doc.Blocks[0].Level)
	assert.Equal(t, BlockParagraph, doc.Blocks[1].Kind)
}

func TestBuildTitleFallsBackToH1(t *testing.T) {
	doc, err := Build([]byte(`<html><body><h1>Heading Title</h1></body></html>`), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", doc.Title)
}

func TestBuildTitleFallsBackToNoTitle(t *testing.T) {
	doc, err := Build([]byte(`<html><body><p>no headings here</p></body></html>`), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "No Title", doc.Title)
}

func TestBuildEmptyHTMLHasNoBlocks(t *testing.T) {
	doc, err := Build([]byte(``), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "No Title", doc.Title)
	assert.Empty(t, doc.Blocks)
}

func TestBuildResolvesRelativeURLs(t *testing.T) {
	doc, err := Build([]byte(`<html><body><a href="/a">L</a><img src="../img.png"></body></html>`), "https://x.test/path/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)

	para := doc.Blocks[0]
	require.Len(t, para.Inline, 1)
	assert.Equal(t, InlineLink, para.Inline[0].Kind)
	assert.Equal(t, "https://x.test/a", para.Inline[0].Href)

	img := doc.Blocks[1]
	assert.Equal(t, BlockImage, img.Kind)
	assert.Equal(t, "https://x.test/img.png", img.Src)
}

func TestBuildBaseHrefOverridesFetchURL(t *testing.T) {
	doc, err := Build([]byte(`<html><head><base href="https://other.test/sub/"></head><body><a href="z">L</a></body></html>`), "https://x.test/path/")
	require.NoError(t, err)
	assert.Equal(t, "https://other.test/sub/", doc.BaseURL)
	assert.Equal(t, "https://other.test/sub/z", doc.Blocks[0].Inline[0].Href)
}

func TestBuildUnresolvableURLPreservedVerbatim(t *testing.T) {
	doc, err := Build([]byte(`<html><body><a href="%zz">L</a></body></html>`), "https://x.test/")
	require.NoError(t, err)
	assert.Equal(t, "%zz", doc.Blocks[0].Inline[0].Href)
}

func TestCodeFenceWithLanguage(t *testing.T) {
	doc, err := Build([]byte(`<html><body><pre><code class="language-go">fmt.Println("hi")</code></pre></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	blk := doc.Blocks[0]
	assert.Equal(t, BlockCodeBlock, blk.Kind)
	assert.Equal(t, "go", blk.Language)
	assert.Contains(t, blk.Literal, `fmt.Println("hi")`)
}

func TestCodeFenceWithoutLanguage(t *testing.T) {
	doc, err := Build([]byte(`<html><body><pre>plain text</pre></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "", doc.Blocks[0].Language)
}

func TestNestedListsFlattenToInlineText(t *testing.T) {
	doc, err := Build([]byte(`<html><body><ul><li>one<ul><li>nested</li></ul></li><li>two</li></ul></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	list := doc.Blocks[0]
	assert.Equal(t, BlockUnorderedList, list.Kind)
	require.Len(t, list.Items, 2)
	assert.Contains(t, PlainText(list.Items[0]), "nested")
	assert.Equal(t, "two", PlainText(list.Items[1]))
}

func TestContentRegionPreference(t *testing.T) {
	doc, err := Build([]byte(`<html><body><div id="content"><p>in content</p></div><p>outside</p></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "in content", PlainText(doc.Blocks[0].Inline))
}

func TestMainRegionPreferredOverBody(t *testing.T) {
	doc, err := Build([]byte(`<html><body><main><p>main content</p></main><p>ignored</p></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "main content", PlainText(doc.Blocks[0].Inline))
}

func TestStrongAndEmphasisNesting(t *testing.T) {
	doc, err := Build([]byte(`<html><body><p>a <strong>bold <em>nested</em></strong> b</p></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "a bold nested b", PlainText(doc.Blocks[0].Inline))
}

func TestLooseInlineTextWithoutWrappingParagraph(t *testing.T) {
	doc, err := Build([]byte(`<html><body>loose text <strong>bold</strong> more</body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, BlockParagraph, doc.Blocks[0].Kind)
	assert.Equal(t, "loose text bold more", PlainText(doc.Blocks[0].Inline))
}

func TestLooseInlineRunFlushesBeforeRealBlock(t *testing.T) {
	doc, err := Build([]byte(`<html><body>intro text<p>real paragraph</p></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "intro text", PlainText(doc.Blocks[0].Inline))
	assert.Equal(t, "real paragraph", PlainText(doc.Blocks[1].Inline))
}

func TestSpanWrappingOnlyTextIsTreatedAsLooseInline(t *testing.T) {
	doc, err := Build([]byte(`<html><body><span>wrapped text</span></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, BlockParagraph, doc.Blocks[0].Kind)
	assert.Equal(t, "wrapped text", PlainText(doc.Blocks[0].Inline))
}

func TestDivWrappingParagraphsRecursesStructurally(t *testing.T) {
	doc, err := Build([]byte(`<html><body><div><p>A</p><p>B</p></div></body></html>`), "https://x.test/")
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "A", PlainText(doc.Blocks[0].Inline))
	assert.Equal(t, "B", PlainText(doc.Blocks[1].Inline))
}
