// Package extract pulls the visible text and title out of fetched HTML
// documents, stripping boilerplate regions (script, style, noscript, nav,
// footer, header, aside) and nodes hidden via inline styles.
//
// The output feeds the relevance scorer, which matches annotation and
// keyword tokens against the page text, so extraction favours recall over
// structure: all surviving text is joined with single spaces.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the extraction result for one document.
type Page struct {
	Title string
	Text  string
}

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "style" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}

// isBoilerplate reports whether n is a non-content region to skip entirely.
func isBoilerplate(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript,
		atom.Nav, atom.Footer, atom.Header, atom.Aside:
		return true
	}
	return false
}

// Visible parses an HTML document and returns its title and visible text.
// A parse failure is returned as an error; an empty document yields an
// empty Page, not an error.
func Visible(body []byte) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return &Page{
		Title: findTitle(doc),
		Text:  collectText(doc),
	}, nil
}

// findTitle returns the trimmed text of the first <title> element.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collectText walks the tree and joins visible text nodes with spaces.
func collectText(root *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isBoilerplate(n) || hasHiddenStyle(n) {
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

// ContentHTML returns the document body with boilerplate regions removed,
// re-serialized as HTML. Used by the snapshot writer, which converts the
// surviving markup to markdown.
func ContentHTML(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("extract: parse html: %w", err)
	}
	prune(doc)
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("extract: render: %w", err)
	}
	return buf.String(), nil
}

// prune removes boilerplate and hidden subtrees in place.
func prune(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.ElementNode && (isBoilerplate(c) || hasHiddenStyle(c)) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}
