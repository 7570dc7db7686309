package render

import (
	"html/template"
	"strings"

	"github.com/Y006/phd-site/internal/errors"
)

// PageData is the input to the page template.
type PageData struct {
	Title string
	Style template.CSS
	Body  template.HTML
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/katex.min.css">
    <style>
{{.Style}}
    </style>
    <style>
        body {
            max-width: 900px;
            margin: 0 auto;
            padding: 2rem;
        }
        .back-link {
            display: inline-block;
            margin-bottom: 1rem;
            color: #0366d6;
            text-decoration: none;
        }
        .back-link:hover {
            text-decoration: underline;
        }
        .katex-display {
            overflow-x: auto;
        }
    </style>
</head>
<body class="markdown-body">
    <a href="./index.html" class="back-link">&larr; Back to index</a>
    {{.Body}}

    <script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/katex.min.js"></script>
    <script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/contrib/auto-render.min.js"
        onload="renderMathInElement(document.body, {
            delimiters: [
                {left: '$$', right: '$$', display: true},
                {left: '$', right: '$', display: false},
                {left: '\\[', right: '\\]', display: true},
                {left: '\\(', right: '\\)', display: false}
            ],
            throwOnError: false
        });"></script>
</body>
</html>
`

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// Page wraps a rendered fragment into a complete HTML document.
func (r *Renderer) Page(title, style, fragment string) (string, error) {
	var b strings.Builder
	err := pageTemplate.Execute(&b, PageData{
		Title: title,
		Style: template.CSS(style),
		Body:  template.HTML(fragment),
	})
	if err != nil {
		return "", errors.NewRenderError("", "executing page template", err)
	}
	return b.String(), nil
}

// RenderPage converts markdown source to a complete HTML document in one
// step.
func (r *Renderer) RenderPage(title, style string, src []byte) (string, error) {
	fragment, err := r.Fragment(src)
	if err != nil {
		return "", err
	}
	return r.Page(title, style, fragment)
}
