package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// MinMainContentChars is the shortest main-content result accepted before
// falling back to whole-page text.
const MinMainContentChars = 200

// Document is a simplified representation of extracted page content.
type Document struct {
	Title string
	Text  string
}

// FromHTML extracts the main content of a page. It prefers <article>, then
// <main> or a role=main container, and skips boilerplate like <nav> and
// <footer>. Text is empty when no content container exists.
func FromHTML(input []byte) Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}
	title := strings.TrimSpace(findTitle(node))
	content := findFirst(node, func(n *html.Node) bool { return strings.EqualFold(n.Data, "article") })
	if content == nil {
		content = findFirst(node, func(n *html.Node) bool {
			return strings.EqualFold(n.Data, "main") || strings.EqualFold(attr(n, "role"), "main")
		})
	}
	var b strings.Builder
	if content != nil {
		collectText(&b, content)
	}
	return Document{Title: title, Text: Clean(b.String())}
}

// Text returns the readable body of a page. The main-content heuristic runs
// first; when it yields fewer than MinMainContentChars characters the whole
// page is stripped of scripts and styles instead.
func Text(raw []byte) string {
	main := FromHTML(raw).Text
	if utf8.RuneCountInString(main) >= MinMainContentChars {
		return main
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return main
	}
	doc.Find("script, style, noscript, template").Remove()
	whole := Clean(doc.Text())
	if utf8.RuneCountInString(whole) > utf8.RuneCountInString(main) {
		return whole
	}
	return main
}

// FromFragment converts a feed summary or content fragment to plain text.
// Input that is not markup comes back cleaned.
func FromFragment(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return Clean(html.UnescapeString(fragment))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Clean(fragment)
	}
	doc.Find("script, style").Remove()
	return Clean(doc.Text())
}

// Clean collapses every whitespace run to a single space, trims the ends and
// applies NFC normalization.
func Clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func findTitle(n *html.Node) string {
	t := findFirst(n, func(c *html.Node) bool { return strings.EqualFold(c.Data, "title") })
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, match); res != nil {
			return res
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if isBoilerplateContainer(n) {
			return
		}
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe", "form", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
	// Block ends separate words that would otherwise run together
	if n.Type == html.ElementNode {
		b.WriteByte(' ')
	}
}

// isBoilerplateContainer returns true if the element looks like a cookie,
// consent or share banner.
func isBoilerplateContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if key != "id" && key != "class" && !strings.HasPrefix(key, "data-") && key != "aria-label" && key != "role" {
			continue
		}
		if containsAny(strings.ToLower(a.Val), []string{"cookie", "consent", "gdpr", "share-bar", "social-share"}) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
