package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Document is the plain result of the last-resort text walk.
type Document struct {
	Title string
	Text  string
}

// FromHTML walks the parsed tree and collects text, preferring <main> or
// <article> and falling back to <body>. Script, navigation and chrome
// containers are skipped.
func FromHTML(input string) Document {
	node, err := html.Parse(strings.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}
	title := ""
	if head := findFirst(node, "head"); head != nil {
		if t := findFirst(head, "title"); t != nil && t.FirstChild != nil {
			title = strings.TrimSpace(t.FirstChild.Data)
		}
	}
	var root *html.Node
	for _, tag := range []string{"main", "article", "body"} {
		if root = findFirst(node, tag); root != nil {
			break
		}
	}
	var b strings.Builder
	if root != nil {
		collectText(&b, root)
	}
	return Document{Title: title, Text: CollapseWhitespace(b.String())}
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if isBoilerplateContainer(n) {
			return
		}
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "nav", "header", "footer", "aside", "iframe":
			return
		case "br", "hr", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString(" ")
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

// isBoilerplateContainer matches ads, share bars, comment threads and
// consent banners by id or class token.
func isBoilerplateContainer(n *html.Node) bool {
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" {
			continue
		}
		for _, tok := range strings.Fields(strings.ToLower(attr.Val)) {
			switch tok {
			case "ad", "advertisement", "social-share", "comments":
				return true
			}
			if strings.Contains(tok, "cookie") || strings.Contains(tok, "consent") || strings.Contains(tok, "gdpr") {
				return true
			}
		}
	}
	return false
}

// CollapseWhitespace turns every whitespace run into one space and trims.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
