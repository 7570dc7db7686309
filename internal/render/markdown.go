// Package render converts markdown sources into complete HTML pages.
//
// Rendering happens in two stages: goldmark produces an HTML fragment
// (GFM tables, fenced code blocks with server-side syntax highlighting,
// auto heading anchors, raw HTML passthrough, hard line breaks), and the
// page template
// wraps the fragment with the document title, the embedded stylesheet,
// and the client-side math renderer. Math delimiters ($...$, $$...$$)
// pass through the converter as plain text and are rendered in the
// browser.
package render

import (
	"bytes"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/Y006/phd-site/internal/errors"
)

// Renderer converts markdown text into HTML fragments.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with the site's markdown feature set.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			// Sources are trusted local files; raw HTML must survive
			// so embedded math and figures work.
			goldmarkhtml.WithUnsafe(),
			// Single newlines inside paragraphs become line breaks
			// instead of reflowing.
			goldmarkhtml.WithHardWraps(),
		),
	)
	return &Renderer{md: md}
}

// Fragment converts markdown source bytes to an HTML fragment.
func (r *Renderer) Fragment(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", errors.NewRenderError("", "converting markdown", err)
	}
	return buf.String(), nil
}
