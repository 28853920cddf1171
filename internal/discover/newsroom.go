package discover

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/companywatch/internal/extract"
	"github.com/hyperifyio/companywatch/internal/source"
)

// DefaultPathSegment selects press links on a newsroom index.
const DefaultPathSegment = "/media/"

// Newsroom collects links from one fixed index page.
type Newsroom struct {
	Fetcher  Fetcher
	IndexURL string
	// PathSegment must appear in a resolved link for it to be kept.
	PathSegment string
	// Company names the fallback title of links without text.
	Company  string
	MaxItems int
}

func (n *Newsroom) Name() string { return source.OriginNewsroom }

func (n *Newsroom) Discover(ctx context.Context) ([]source.Ref, error) {
	if strings.TrimSpace(n.IndexURL) == "" {
		return nil, errors.New("newsroom index url is empty")
	}
	base, err := url.Parse(n.IndexURL)
	if err != nil {
		return nil, err
	}
	res := n.Fetcher.Fetch(ctx, n.IndexURL)
	if !res.OK() {
		return nil, res.Err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, err
	}
	segment := n.PathSegment
	if segment == "" {
		segment = DefaultPathSegment
	}
	fallbackTitle := strings.TrimSpace(n.Company + " – Media")

	var out []source.Ref
	seen := map[string]struct{}{}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()
		if !strings.Contains(abs, segment) {
			return true
		}
		if _, ok := seen[abs]; ok {
			return true
		}
		seen[abs] = struct{}{}
		title := extract.Clean(a.Text())
		if title == "" {
			title = fallbackTitle
		}
		out = append(out, source.Ref{URL: abs, Title: title, Origin: source.OriginNewsroom})
		return n.MaxItems <= 0 || len(out) < n.MaxItems
	})
	return out, nil
}
