package aggregate

import (
	"fmt"
	"testing"

	"github.com/hyperifyio/companywatch/internal/source"
)

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/media/a/":            "https://example.com/media/a",
		"https://example.com/media/a?b=2&a=1#top": "https://example.com/media/a?a=1&b=2",
		"https://example.com/":                    "https://example.com",
		"https://example.com/x?a=2&a=1":           "https://example.com/x?a=1&a=2",
		"  https://example.com/p  ":               "https://example.com/p",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestDedupe_CaseAndSlashInsensitive_FirstWins(t *testing.T) {
	refs := []source.Ref{
		{URL: "https://Example.com/News/1/", Title: "first", Origin: source.OriginNewsroom},
		{URL: "", Title: "empty"},
		{URL: "https://example.com/news/1", Title: "dup", Origin: source.NewsOrigin("en")},
		{URL: "https://example.com/news/2?b=1&a=2", Title: "second"},
		{URL: "https://example.com/news/2?a=2&b=1#frag", Title: "dup2"},
	}
	out := Dedupe(refs)
	if len(out) != 2 {
		t.Fatalf("expected 2, got %d: %+v", len(out), out)
	}
	if out[0].Title != "first" || out[1].Title != "second" {
		t.Fatalf("order or winner wrong: %+v", out)
	}
	if out[0].URL != "https://Example.com/News/1/" {
		t.Fatalf("first occurrence should be kept unchanged, got %q", out[0].URL)
	}
}

// Three channels of five candidates each, with two URLs repeated across them.
func TestDedupe_ThreeChannelsWithTwoDuplicates(t *testing.T) {
	var all []source.Ref
	for ch := 0; ch < 3; ch++ {
		for i := 0; i < 5; i++ {
			all = append(all, source.Ref{URL: fmt.Sprintf("https://example.com/%d/%d", ch, i)})
		}
	}
	all[7].URL = all[0].URL + "/"
	all[12].URL = "HTTPS://EXAMPLE.COM/1/1"
	out := Dedupe(all)
	if len(out) != 13 {
		t.Fatalf("expected 13, got %d", len(out))
	}
	seen := map[string]bool{}
	for _, r := range out {
		k := Key(r.URL)
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
	}
}
