package discover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/companywatch/internal/aggregate"
	"github.com/hyperifyio/companywatch/internal/fetch"
	"github.com/hyperifyio/companywatch/internal/source"
)

// mapFetcher serves canned bodies; unknown URLs fail with 404.
type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, u string) fetch.Result {
	body, ok := m[u]
	if !ok {
		return fetch.Result{URL: u, Err: &fetch.Error{URL: u, StatusCode: 404, Err: errors.New("not found")}}
	}
	return fetch.Result{URL: u, Body: []byte(body)}
}

type staticDiscoverer struct {
	name string
	refs []source.Ref
	err  error
	boom bool
}

func (s staticDiscoverer) Name() string { return s.name }

func (s staticDiscoverer) Discover(context.Context) ([]source.Ref, error) {
	if s.boom {
		panic("boom")
	}
	return s.refs, s.err
}

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>t</title>
<item><title>Results &amp; outlook</title><link>https://news.example.com/a</link>
<pubDate>Mon, 03 Jun 2024 08:00:00 GMT</pubDate>
<description>&lt;p&gt;Full &lt;b&gt;year&lt;/b&gt; results&lt;/p&gt;</description></item>
<item><title></title><link>https://news.example.com/b</link></item>
<item><title>Third</title><link>https://news.example.com/c</link></item>
</channel></rss>`

func TestNewsroom_ResolvesAndFilters(t *testing.T) {
	index := "https://corp.example.com/en/media"
	page := `<html><body>
      <a href="/en/media/press-1">  Press   one </a>
      <a href="https://corp.example.com/en/media/press-2"></a>
      <a href="/en/careers">Careers</a>
      <a href="/en/media/press-1">Press one again</a>
      <a href="">empty</a>
      <a href="/en/media/press-3">Three</a>
    </body></html>`
	n := &Newsroom{Fetcher: mapFetcher{index: page}, IndexURL: index, Company: "Acme", MaxItems: 2}
	refs, err := n.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "https://corp.example.com/en/media/press-1", refs[0].URL)
	assert.Equal(t, "Press one", refs[0].Title)
	assert.Equal(t, "Acme – Media", refs[1].Title)
	assert.Equal(t, source.OriginNewsroom, refs[1].Origin)
}

func TestNewsroom_FetchFailureIsError(t *testing.T) {
	n := &Newsroom{Fetcher: mapFetcher{}, IndexURL: "https://corp.example.com/media"}
	refs, err := n.Discover(context.Background())
	assert.Error(t, err)
	assert.Empty(t, refs)
}

func TestParseLocalesAndSearchURL(t *testing.T) {
	locs := ParseLocales(" de-DE, en_us ,fr,")
	require.Equal(t, []Locale{{"de", "DE"}, {"en", "US"}, {"fr", "FR"}}, locs)

	assert.Equal(t, 1, WindowDays(3*time.Hour))
	assert.Equal(t, 7, WindowDays(7*24*time.Hour))
	assert.Equal(t, 2, WindowDays(25*time.Hour))

	u := SearchURL("", "Acme", 7, locs[0])
	assert.Equal(t, "https://news.google.com/rss/search?ceid=DE%3Ade&gl=DE&hl=de&q=Acme+when%3A7d", u)
}

func TestNewsFeed_PerLocaleIsolation(t *testing.T) {
	en := Locale{"en", "US"}
	de := Locale{"de", "DE"}
	f := mapFetcher{SearchURL("", "Acme", 7, en): rss}
	n := &NewsFeed{Fetcher: f, Company: "Acme", Locales: []Locale{de, en}, Lookback: 7 * 24 * time.Hour, MaxItems: 2}
	refs, err := n.Discover(context.Background())
	require.NoError(t, err, "one working locale is enough")
	require.Len(t, refs, 2)
	assert.Equal(t, "Results & outlook", refs[0].Title)
	assert.Equal(t, "news:en", refs[0].Origin)
	require.NotNil(t, refs[0].PublishedAt)
	assert.True(t, refs[0].PublishedAt.Equal(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)))
	assert.Empty(t, refs[0].Snippet, "news entries are fetched, not prefetched")
	assert.Equal(t, "News", refs[1].Title)
	assert.Nil(t, refs[1].PublishedAt)

	n.Locales = []Locale{de}
	_, err = n.Discover(context.Background())
	assert.Error(t, err)
}

func TestSocialFeed_SnippetsAndSearch(t *testing.T) {
	en := Locale{"en", "US"}
	f := mapFetcher{
		"https://social.example.com/feed.xml":                 rss,
		SearchURL("", "Acme site:linkedin.com", 1, en): rss,
	}
	s := &SocialFeed{
		Fetcher:  f,
		FeedURLs: []string{"https://social.example.com/feed.xml", "https://social.example.com/down.xml"},
		Search:   true,
		Company:  "Acme",
		Domain:   "linkedin.com",
		Locales:  []Locale{en},
		Lookback: time.Hour,
		MaxItems: 1,
	}
	refs, err := s.Discover(context.Background())
	assert.Error(t, err, "the failing feed is reported")
	require.Len(t, refs, 2)
	assert.Equal(t, source.OriginSocial, refs[0].Origin)
	assert.Equal(t, "Full year results", refs[0].Snippet)
	assert.Equal(t, "social:search:en", refs[1].Origin)
	assert.Empty(t, refs[1].Snippet)
	assert.Equal(t, source.ClassSocial, source.OriginClass(refs[1].Origin))
}

func TestSocialFeed_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer srv.Close()

	s := &SocialFeed{Fetcher: &fetch.Client{PerRequestTimeout: 2 * time.Second}, FeedURLs: []string{srv.URL}, MaxItems: 8}
	refs, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, refs, 3)
}

func TestSnapshot(t *testing.T) {
	p := filepath.Join(t.TempDir(), "snap.json")
	data := `[{"url":"https://a.example.com/1","title":"One","published_at":"2024-06-01T10:00:00+02:00","snippet":"text"},
	          {"url":"","title":"skip"},
	          {"url":"https://a.example.com/2","title":"Two","origin":"social"}]`
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	refs, err := (&Snapshot{Path: p}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, source.OriginSnapshot, refs[0].Origin)
	assert.Equal(t, time.UTC, refs[0].PublishedAt.Location())
	assert.Equal(t, 8, refs[0].PublishedAt.Hour())
	assert.Equal(t, source.OriginSocial, refs[1].Origin)

	_, err = (&Snapshot{}).Discover(context.Background())
	assert.Error(t, err)
}

func TestRun_IsolatesFailuresAndKeepsOrder(t *testing.T) {
	ds := []Discoverer{
		staticDiscoverer{name: "a", refs: []source.Ref{{URL: "https://x/1"}}},
		staticDiscoverer{name: "b", boom: true},
		staticDiscoverer{name: "c", refs: []source.Ref{{URL: "https://x/2"}}, err: errors.New("partial")},
		staticDiscoverer{name: "d", refs: []source.Ref{{URL: "https://x/3"}}},
	}
	refs, outcomes := Run(context.Background(), ds)
	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.Contains(t, outcomes[1].Err.Error(), "panicked")
	assert.False(t, outcomes[2].OK())
	var urls []string
	for _, r := range refs {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"https://x/1", "https://x/2", "https://x/3"}, urls)
}

// Three discoverers with five candidates each, two of which repeat URLs
// already contributed by another discoverer.
func TestRun_ThenDedupe_ThirteenCandidates(t *testing.T) {
	mk := func(name string, urls ...string) Discoverer {
		d := staticDiscoverer{name: name}
		for _, u := range urls {
			d.refs = append(d.refs, source.Ref{URL: u, Origin: name})
		}
		return d
	}
	var a, b, c []string
	for i := 0; i < 5; i++ {
		a = append(a, fmt.Sprintf("https://corp.example.com/media/%d", i))
		b = append(b, fmt.Sprintf("https://news.example.com/%d", i))
		c = append(c, fmt.Sprintf("https://social.example.com/%d", i))
	}
	b[4] = strings.ToUpper(a[1])
	c[0] = a[3] + "/"
	refs, _ := Run(context.Background(), []Discoverer{mk("newsroom", a...), mk("news:en", b...), mk("social", c...)})
	require.Len(t, refs, 15)
	assert.Len(t, aggregate.Dedupe(refs), 13)
}
