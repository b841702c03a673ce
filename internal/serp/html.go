package serp

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// PreProcessHTML drops elements that never hold result text (scripts,
// styles, noscript and template blocks) along with comments, and returns
// the re-serialized document. On any parse failure the input is returned
// unchanged.
func PreProcessHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	// A space stands in for each removed element so the text around it
	// stays two words.
	for _, n := range doc.Find("script, style, noscript, template").Nodes {
		if n.Parent == nil {
			continue
		}
		n.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: " "}, n)
		n.Parent.RemoveChild(n)
	}
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	out, err := doc.Html()
	if err != nil {
		return raw
	}
	return out
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

// ExtractTree parses text into a tree for XPath queries. It returns nil
// only if the reader fails, which a string reader never does.
func ExtractTree(text string) *html.Node {
	root, err := htmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil
	}
	return root
}

// joinText trims every node matched by expr under n, drops the empty ones
// and joins the rest with single spaces in document order.
func joinText(n *html.Node, expr *xpath.Expr) string {
	var parts []string
	for _, m := range htmlquery.QuerySelectorAll(n, expr) {
		if s := strings.TrimSpace(htmlquery.InnerText(m)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// firstText returns the first trimmed non-empty value matched by expr
// under n, or "".
func firstText(n *html.Node, expr *xpath.Expr) string {
	for _, m := range htmlquery.QuerySelectorAll(n, expr) {
		if s := strings.TrimSpace(htmlquery.InnerText(m)); s != "" {
			return s
		}
	}
	return ""
}
