package render

import (
	"bytes"

	"golang.org/x/net/html"

	"github.com/Y006/phd-site/internal/errors"
)

// ValidateDocument parses a freshly rendered document and checks it has a
// non-empty body. This is a write-time sanity check against truncated or
// empty output; skip decisions on later runs still rely on the
// fingerprint cache plus output existence.
func ValidateDocument(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.NewRenderError("", "rendered document is empty", nil)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return errors.NewRenderError("", "parsing rendered document", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		return errors.NewRenderError("", "rendered document has no body", nil)
	}
	if !hasContent(body) {
		return errors.NewRenderError("", "rendered document body is empty", nil)
	}
	return nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func hasContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return true
		case html.TextNode:
			if len(bytes.TrimSpace([]byte(c.Data))) > 0 {
				return true
			}
		}
	}
	return false
}
