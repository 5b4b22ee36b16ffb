package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// ownClassPrefix marks elements this package injects into the page.
const ownClassPrefix = "quizlens-"

// isOwn reports whether n is an element this package injected.
func isOwn(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(a.Val) {
			if strings.HasPrefix(cls, ownClassPrefix) {
				return true
			}
		}
	}
	return false
}

// insideOwn reports whether n or any ancestor was injected by us.
func insideOwn(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if isOwn(n) {
			return true
		}
	}
	return false
}

// find runs a selector under s, skipping our own injected markup.
func find(s *goquery.Selection, selector string) *goquery.Selection {
	return s.Find(selector).FilterFunction(func(_ int, el *goquery.Selection) bool {
		return !insideOwn(el.Get(0))
	})
}

// rawText concatenates text under the selection's nodes, skipping scripts,
// styles and injected markup.
func rawText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if isOwn(n) || n.Data == "script" || n.Data == "style" {
				return
			}
			switch n.Data {
			case "br", "p", "div", "li", "tr", "td", "th", "pre":
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}

// text returns the normalized text of a selection.
func text(s *goquery.Selection) string {
	return normalize(rawText(s))
}

// normalize applies NFKC and collapses whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
