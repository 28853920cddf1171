package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hyperifyio/companywatch/internal/extract"
	"github.com/hyperifyio/companywatch/internal/source"
)

// DefaultFeedBase is the search-feed endpoint queried by NewsFeed.
const DefaultFeedBase = "https://news.google.com/rss/search"

// Locale is one (language, region) pair for feed searches.
type Locale struct {
	Lang   string
	Region string
}

// ParseLocales parses a comma separated list like "de-DE,en-US". Entries
// without a region reuse the upper-cased language.
func ParseLocales(s string) []Locale {
	var out []Locale
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lang, region, _ := strings.Cut(strings.ReplaceAll(part, "_", "-"), "-")
		lang = strings.ToLower(lang)
		if region == "" {
			region = lang
		}
		out = append(out, Locale{Lang: lang, Region: strings.ToUpper(region)})
	}
	return out
}

// WindowDays converts a lookback window into whole days, at least one.
func WindowDays(lookback time.Duration) int {
	return int(math.Max(1, math.Ceil(lookback.Hours()/24)))
}

// SearchURL builds the search-feed URL for query restricted to the last days
// in locale l.
func SearchURL(base, query string, days int, l Locale) string {
	if base == "" {
		base = DefaultFeedBase
	}
	v := url.Values{}
	v.Set("q", fmt.Sprintf("%s when:%dd", query, days))
	v.Set("hl", l.Lang)
	v.Set("gl", l.Region)
	v.Set("ceid", l.Region+":"+l.Lang)
	return base + "?" + v.Encode()
}

// readFeed fetches and parses one feed and converts at most max entries. The
// snippet is filled only when withSnippet is set.
func readFeed(ctx context.Context, f Fetcher, feedURL, origin, defaultTitle string, max int, withSnippet bool) ([]source.Ref, error) {
	res := f.Fetch(ctx, feedURL)
	if !res.OK() {
		return nil, res.Err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	items := feed.Items
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	out := make([]source.Ref, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		title := strings.TrimSpace(html.UnescapeString(it.Title))
		if title == "" {
			title = defaultTitle
		}
		ref := source.Ref{
			URL:         strings.TrimSpace(it.Link),
			Title:       title,
			Origin:      origin,
			PublishedAt: itemTime(it),
		}
		if withSnippet {
			if it.Description != "" {
				ref.Snippet = extract.FromFragment(it.Description)
			} else if it.Content != "" {
				ref.Snippet = extract.FromFragment(it.Content)
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

// itemTime prefers the published timestamp over the updated one.
func itemTime(it *gofeed.Item) *time.Time {
	for _, p := range []*time.Time{it.PublishedParsed, it.UpdatedParsed} {
		if p != nil && !p.IsZero() {
			t := p.UTC()
			return &t
		}
	}
	for _, s := range []string{it.Published, it.Updated} {
		if t := extract.ParseDate(s); t != nil {
			return t
		}
	}
	return nil
}

// NewsFeed searches the news feed once per locale for the company.
type NewsFeed struct {
	Fetcher  Fetcher
	Base     string
	Company  string
	Locales  []Locale
	Lookback time.Duration
	// MaxItems caps entries per locale.
	MaxItems int
}

func (n *NewsFeed) Name() string { return "news" }

// Discover queries every locale. A failing locale is skipped; the error is
// reported only when no locale succeeded.
func (n *NewsFeed) Discover(ctx context.Context) ([]source.Ref, error) {
	days := WindowDays(n.Lookback)
	var out []source.Ref
	var errs []error
	for _, l := range n.Locales {
		refs, err := readFeed(ctx, n.Fetcher, SearchURL(n.Base, n.Company, days, l), source.NewsOrigin(l.Lang), "News", n.MaxItems, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("locale %s-%s: %w", l.Lang, l.Region, err))
			continue
		}
		out = append(out, refs...)
	}
	if len(errs) > 0 && len(errs) == len(n.Locales) {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// SocialFeed reads externally configured social feeds, optionally followed by
// a news-feed search restricted to Domain.
type SocialFeed struct {
	Fetcher  Fetcher
	FeedURLs []string
	// Search enables the site-restricted supplement.
	Search   bool
	Base     string
	Company  string
	Domain   string
	Locales  []Locale
	Lookback time.Duration
	MaxItems int
}

func (s *SocialFeed) Name() string { return source.OriginSocial }

// Discover keeps every feed and search independent. The joined error of the
// failed endpoints is returned with whatever the others produced.
func (s *SocialFeed) Discover(ctx context.Context) ([]source.Ref, error) {
	var out []source.Ref
	var errs []error
	for _, u := range s.FeedURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		refs, err := readFeed(ctx, s.Fetcher, u, source.OriginSocial, "Social", s.MaxItems, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, refs...)
	}
	if s.Search && s.Domain != "" {
		days := WindowDays(s.Lookback)
		query := s.Company + " site:" + s.Domain
		for _, l := range s.Locales {
			refs, err := readFeed(ctx, s.Fetcher, SearchURL(s.Base, query, days, l), source.SocialSearchOrigin(l.Lang), "Social (search)", s.MaxItems, false)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, refs...)
		}
	}
	return out, errors.Join(errs...)
}
