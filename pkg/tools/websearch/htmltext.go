package websearch

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Page is readable text extracted from an HTML document.
type Page struct {
	Title       string
	Description string
	Text        string
	Truncated   bool
}

// ExtractText parses rawHTML and returns its visible text, one block per
// line, cut to at most maxLength bytes of text.
func ExtractText(rawHTML string, maxLength int) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		Title:       extractTitle(doc),
		Description: extractMetaDescription(doc),
	}

	w := &textWriter{max: maxLength}
	w.walk(doc)
	page.Text = normalizeLines(w.b.String())
	page.Truncated = w.truncated
	return page, nil
}

type textWriter struct {
	b         strings.Builder
	n         int
	max       int
	truncated bool
}

func (w *textWriter) walk(n *html.Node) {
	if w.truncated {
		return
	}
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) {
			return
		}
		if tag == "br" {
			w.b.WriteString("\n")
			return
		}
		if isBlockElement(tag) {
			w.b.WriteString("\n")
			defer w.b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *textWriter) text(raw string) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return
	}
	if w.max > 0 && w.n+len(text) > w.max {
		remaining := w.max - w.n
		if remaining < 0 {
			remaining = 0
		}
		text = truncateUTF8(text, remaining) + "..."
		w.truncated = true
	}
	if s := w.b.String(); s != "" && !strings.HasSuffix(s, "\n") && !strings.HasSuffix(s, " ") {
		w.b.WriteString(" ")
	}
	w.b.WriteString(text)
	w.n += len(text)
}

// normalizeLines trims each line and drops empty ones.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// isSkippedElement returns true for elements whose text is never shown
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg",
		"head", "nav", "footer", "template":
		return true
	}
	return false
}

// isBlockElement returns true for block-level elements
func isBlockElement(tagName string) bool {
	switch tagName {
	case "div", "p", "section", "article", "header", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "td", "th", "form", "fieldset", "blockquote", "pre":
		return true
	}
	return false
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return title
}

// extractMetaDescription extracts the meta description from the document
func extractMetaDescription(doc *html.Node) string {
	var description string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			if attr(n, "name") == "description" {
				description = strings.TrimSpace(attr(n, "content"))
			}
			return
		}
		for c := n.FirstChild; c != nil && description == ""; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return description
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// nodeText returns the collapsed text below n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
