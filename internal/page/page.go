// Package page parses fetched profile pages once and exposes the pieces the
// classifier and the extractor look at: title, meta tags, inline scripts and
// a goquery document for CSS selector queries.
package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Script is a <script> element found in the page.
type Script struct {
	// ID is the element id attribute.
	ID string

	// Type is the type attribute (e.g. "application/ld+json").
	Type string

	// Src is the src attribute for external scripts.
	Src string

	// Text is the inline script body.
	Text string
}

// Document is a parsed page.
//
// Design decision: The page is parsed a single time with golang.org/x/net/html,
// and the goquery document is built on the same node tree, so marker checks
// and extraction rules never re-parse the content.
type Document struct {
	// Title is the trimmed text of the first <title> element.
	Title string

	// MetaTags maps meta name (or OpenGraph property) to content.
	MetaTags map[string]string

	// Scripts lists script elements in document order.
	Scripts []Script

	raw string
	dom *goquery.Document
}

// Parse parses HTML content. Malformed markup is tolerated the way browsers
// tolerate it; an error is returned only when the tokenizer gives up.
func Parse(content string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	d := &Document{
		MetaTags: make(map[string]string),
		Scripts:  make([]Script, 0),
		raw:      content,
		dom:      goquery.NewDocumentFromNode(root),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.processElement(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return d, nil
}

// processElement handles HTML element nodes.
func (d *Document) processElement(n *html.Node) {
	switch n.Data {
	case "title":
		if d.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			d.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property") // OpenGraph uses property
		}
		content := getAttr(n, "content")
		if name != "" && content != "" {
			d.MetaTags[name] = content
		}

	case "script":
		d.Scripts = append(d.Scripts, Script{
			ID:   getAttr(n, "id"),
			Type: getAttr(n, "type"),
			Src:  getAttr(n, "src"),
			Text: nodeText(n),
		})
	}
}

// Raw returns the content the document was parsed from.
func (d *Document) Raw() string {
	return d.raw
}

// DOM returns the goquery document.
func (d *Document) DOM() *goquery.Document {
	return d.dom
}

// Find runs a CSS selector query. An invalid selector matches nothing.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.dom.Find(selector)
}

// Has reports whether selector matches at least one element.
func (d *Document) Has(selector string) bool {
	return d.Find(selector).Length() > 0
}

// Meta returns a meta tag value.
func (d *Document) Meta(name string) (string, bool) {
	v, ok := d.MetaTags[name]
	return v, ok
}

// IsEmpty reports whether the document carries no content at all.
func (d *Document) IsEmpty() bool {
	return strings.TrimSpace(d.raw) == ""
}

// nodeText concatenates the text children of n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
