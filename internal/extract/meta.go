package extract

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Title returns og:title when present, otherwise the <title> text.
func Title(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).First().AttrOr("content", "")); t != "" {
		return Clean(t)
	}
	return Clean(doc.Find("title").First().Text())
}

// PublishedAt recovers a publication timestamp from page metadata. Candidates
// are tried in order: meta name=date, meta property=article:published_time,
// then the first <time> element (datetime attribute, else its text). The
// first candidate that parses wins. It returns nil when nothing parses.
func PublishedAt(raw []byte) *time.Time {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	var candidates []string
	candidates = append(candidates, doc.Find(`meta[name="date"]`).First().AttrOr("content", ""))
	candidates = append(candidates, doc.Find(`meta[property="article:published_time"]`).First().AttrOr("content", ""))
	if tm := doc.Find("time").First(); tm.Length() > 0 {
		v, ok := tm.Attr("datetime")
		if !ok || strings.TrimSpace(v) == "" {
			v = tm.Text()
		}
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if t := ParseDate(c); t != nil {
			return t
		}
	}
	return nil
}

// ParseDate parses s leniently. Values without a zone are taken as UTC and the
// result is always in UTC. Unparseable input yields nil, never a panic.
func ParseDate(s string) (out *time.Time) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
