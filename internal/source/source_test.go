package source

import "testing"

func TestOriginClass(t *testing.T) {
	cases := map[string]Class{
		"newsroom":          ClassArticle,
		"news:de":           ClassArticle,
		"snapshot":          ClassArticle,
		"social":            ClassSocial,
		"Social":            ClassSocial,
		"social:search:en":  ClassSocial,
		"socialite-weekly":  ClassArticle,
		"":                  ClassArticle,
	}
	for origin, want := range cases {
		if got := OriginClass(origin); got != want {
			t.Fatalf("OriginClass(%q)=%q, want %q", origin, got, want)
		}
	}
}

func TestMinLength_UsesOriginTagNotURL(t *testing.T) {
	m := MinLength{Article: 600, Social: 140}
	if got := m.For(OriginNewsroom); got != 600 {
		t.Fatalf("newsroom threshold=%d", got)
	}
	if got := m.For(SocialSearchOrigin("EN")); got != 140 {
		t.Fatalf("social search threshold=%d", got)
	}
	// A social-network URL discovered through a news feed keeps the article rule.
	d := Document{Ref: Ref{URL: "https://www.linkedin.com/posts/x", Origin: NewsOrigin("en")}}
	if d.Class() != ClassArticle {
		t.Fatalf("expected article class for news origin")
	}
}
