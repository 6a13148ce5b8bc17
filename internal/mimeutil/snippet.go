package mimeutil

import (
	"strings"

	"golang.org/x/net/html"
)

const snippetMaxLen = 100

// Snippet derives the short preview text shown in list views: HTML
// stripped to its text nodes, whitespace collapsed, capped at 100
// characters on a rune boundary.
func Snippet(body string) string {
	text := body
	if strings.Contains(body, "<") {
		text = stripHTML(body)
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetMaxLen {
		return strings.TrimSpace(string(runes[:snippetMaxLen]))
	}
	return text
}

func stripHTML(s string) string {
	node, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}
