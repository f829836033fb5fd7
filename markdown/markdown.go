// Package markdown renders post and project Markdown to sanitized HTML as a
// templ component.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const linkClass = "underline decoration-2 underline-offset-4"

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(mediaTransformer{}, 100)),
		),
	)

	policy = newPolicy()
	strict = bluemonday.StrictPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").Matching(regexp.MustCompile(`^[a-z0-9-]+$`)).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^` + linkClass + `$`)).OnElements("a")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code")
	p.AllowAttrs("loading").Matching(regexp.MustCompile(`^(eager|lazy)$`)).OnElements("img")
	p.AllowAttrs("decoding").Matching(regexp.MustCompile(`^async$`)).OnElements("img")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// mediaTransformer styles links and loads the first image eagerly.
type mediaTransformer struct{}

func (mediaTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	images := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Link:
			n.SetAttributeString("class", []byte(linkClass))
		case *ast.Image:
			images++
			loading := "lazy"
			if images == 1 {
				loading = "eager"
			}
			n.SetAttributeString("loading", []byte(loading))
			n.SetAttributeString("decoding", []byte("async"))
		}
		return ast.WalkContinue, nil
	})
}

// Markdown returns a templ.Component that renders content as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := RenderMarkdown(&buf, content); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown writes the sanitized HTML representation of src to buf.
func RenderMarkdown(buf *bytes.Buffer, src string) error {
	var raw bytes.Buffer
	if err := md.Convert([]byte(src), &raw); err != nil {
		return err
	}
	buf.Write(policy.SanitizeBytes(raw.Bytes()))
	return nil
}

// PlainText renders src and reduces it to whitespace-collapsed text of at
// most max runes. A max of zero means no limit.
func PlainText(src string, max int) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	s := html.UnescapeString(strict.Sanitize(buf.String()))
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); max > 0 && len(r) > max {
		return strings.TrimSpace(string(r[:max]))
	}
	return s
}
