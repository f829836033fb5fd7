package markdown

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, src string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, RenderMarkdown(&buf, src))
	return buf.String()
}

func TestRenderInline(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"__bold__", "<strong>bold</strong>"},
		{"*italic*", "<em>italic</em>"},
		{"**bold *italic* text**", "<strong>bold <em>italic</em> text</strong>"},
		{"use `fmt.Println` here", "use <code>fmt.Println</code> here"},
		{"`**not bold**`", "<code>**not bold**</code>"},
		{"~~gone~~", "<del>gone</del>"},
	}
	for _, tt := range tests {
		assert.Contains(t, render(t, tt.input), tt.want, tt.input)
	}
}

func TestRenderHeadings(t *testing.T) {
	got := render(t, "# Heading 1\n\n## Heading 2")
	assert.Contains(t, got, `<h1 id="heading-1">Heading 1</h1>`)
	assert.Contains(t, got, `<h2 id="heading-2">Heading 2</h2>`)
}

func TestRenderCodeBlock(t *testing.T) {
	got := render(t, "```go\nfmt.Println(\"<hi>\")\n```")
	assert.Contains(t, got, `<pre><code class="language-go">`)
	assert.Contains(t, got, "&lt;hi&gt;")
}

func TestCodeClassPolicy(t *testing.T) {
	assert.Equal(t, `<code class="language-c++">x</code>`, policy.Sanitize(`<code class="language-c++">x</code>`))
	assert.Equal(t, `<code>x</code>`, policy.Sanitize(`<code class="evil language-go">x</code>`))
	assert.Equal(t, `<p>x</p>`, policy.Sanitize(`<p class="language-go">x</p>`))
}

func TestRenderLists(t *testing.T) {
	got := render(t, "- item 1\n- item 2")
	assert.Contains(t, got, "<ul>")
	assert.Contains(t, got, "<li>item 1</li>")

	got = render(t, "1. **bold** item\n2. second\n\nsome text")
	assert.Contains(t, got, "<ol>")
	assert.Contains(t, got, "<li><strong>bold</strong> item</li>")
	assert.Contains(t, got, "<p>some text</p>")
}

func TestRenderLinks(t *testing.T) {
	got := render(t, "[Wikipedia](https://en.wikipedia.org/wiki/Some_Article_Title)")
	assert.Contains(t, got, `href="https://en.wikipedia.org/wiki/Some_Article_Title"`)
	assert.Contains(t, got, `class="`+linkClass+`"`)
	assert.Contains(t, got, `target="_blank"`)
	assert.Contains(t, got, ">Wikipedia</a>")

	got = render(t, "[home](/posts/)")
	assert.Contains(t, got, `href="/posts/"`)
	assert.NotContains(t, got, "_blank")
}

func TestRenderStripsUnsafeMarkup(t *testing.T) {
	got := render(t, "hello <script>alert(1)</script>\n\n[x](javascript:alert(1))\n\n<div onclick=\"x()\">raw</div>")
	assert.NotContains(t, got, "<script")
	assert.NotContains(t, got, "javascript:")
	assert.NotContains(t, got, "onclick")
}

func TestRenderImages(t *testing.T) {
	got := render(t, "![one](/uploads/a.jpg)\n\n![two](/uploads/b.jpg)")
	first := strings.Index(got, `loading="eager"`)
	second := strings.Index(got, `loading="lazy"`)
	require.GreaterOrEqual(t, first, 0, got)
	require.Greater(t, second, first, got)
	assert.Contains(t, got, `alt="one"`)
	assert.Contains(t, got, `decoding="async"`)
}

func TestMarkdownComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown("*hi*").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "<em>hi</em>")
}

func TestPlainText(t *testing.T) {
	src := "# Title\n\nSome **bold** & <b>raw</b> text.\n\n- a\n- b"
	assert.Equal(t, "Title Some bold & raw text. a b", PlainText(src, 0))
	assert.Equal(t, "Title Some", PlainText(src, 11))
	assert.Equal(t, "", PlainText("", 10))
}
