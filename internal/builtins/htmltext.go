// ABOUTME: Reduces fetched HTML to readable text for the model.
// ABOUTME: Skips scripts and styles, keeps link targets, collapses whitespace.

package builtins

import (
	"strings"

	"golang.org/x/net/html"
)

// visibleText returns the readable text of an HTML page. Content that does
// not look like HTML is returned with whitespace normalized.
func visibleText(raw string) string {
	if !looksLikeHTML(raw) {
		return strings.TrimSpace(raw)
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)
	return cleanText(sb.String())
}

func looksLikeHTML(s string) bool {
	head := strings.ToLower(s)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<body") || strings.Contains(head, "<head")
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 64 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "head":
			return
		case "br":
			sb.WriteString("\n")
		case "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6", "table":
			sb.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode && n.Data == "a" {
		if href := attr(n, "href"); strings.HasPrefix(href, "http") {
			sb.WriteString("(" + href + ") ")
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
