// Package source holds the candidate and document types shared by every
// pipeline stage.
package source

import (
	"strings"
	"time"
)

// Origin tags name the discovery channel that produced a candidate.
const (
	OriginNewsroom = "newsroom"
	OriginSocial   = "social"
	OriginSnapshot = "snapshot"

	newsPrefix         = "news:"
	socialSearchPrefix = "social:search:"
)

// Class groups origin tags that share length thresholds and scoring bonuses.
type Class string

const (
	ClassArticle Class = "article"
	ClassSocial  Class = "social"
)

// NewsOrigin returns the origin tag for a news-feed search in lang.
func NewsOrigin(lang string) string { return newsPrefix + strings.ToLower(strings.TrimSpace(lang)) }

// SocialSearchOrigin returns the origin tag for a site-restricted feed search in lang.
func SocialSearchOrigin(lang string) string {
	return socialSearchPrefix + strings.ToLower(strings.TrimSpace(lang))
}

// OriginClass derives the class from the origin tag alone. URLs are never
// inspected, so a social link found by the newsroom crawl stays an article.
func OriginClass(origin string) Class {
	o := strings.ToLower(strings.TrimSpace(origin))
	if o == OriginSocial || strings.HasPrefix(o, OriginSocial+":") {
		return ClassSocial
	}
	return ClassArticle
}

// Ref is a discovered candidate. It is not modified after discovery.
type Ref struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Origin      string     `json:"origin"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	// Snippet is text delivered with the candidate (social feed summaries).
	// When non-empty the page is not fetched.
	Snippet string `json:"snippet,omitempty"`
}

// Document is a candidate after fetch and normalization.
type Document struct {
	Ref
	// Index is the position of the candidate in the deduplicated discovery
	// order; ranking uses it to break ties.
	Index int
	Text  string
	// PublishedAt is the resolved timestamp: the candidate's own when known,
	// else whatever the page metadata yielded. Nil means unknown.
	PublishedAt *time.Time
}

// Class reports the origin class of the document.
func (d Document) Class() Class { return OriginClass(d.Origin) }

// MinLength holds the minimum body length per origin class.
type MinLength struct {
	Article int
	Social  int
}

// For returns the threshold that applies to origin.
func (m MinLength) For(origin string) int {
	if OriginClass(origin) == ClassSocial {
		return m.Social
	}
	return m.Article
}
