// Package selecter filters normalized documents to the lookback window and
// ranks them for extraction.
package selecter

import (
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/hyperifyio/companywatch/internal/source"
)

const (
	// LengthUnit is the body length worth one score point.
	LengthUnit = 1500.0
	// SocialBonus offsets the length disadvantage of short-form posts.
	SocialBonus = 0.2
)

// Options configures selection constraints.
type Options struct {
	// TopN caps the number of selected documents. Zero selects none.
	TopN int
	// Lookback is the maximum age of a document with a known timestamp.
	Lookback time.Duration
	// MinLength drops bodies shorter than the threshold for their origin class.
	MinLength source.MinLength
}

// FilterLength drops documents whose body is shorter than the threshold for
// their origin tag. Lengths are counted in characters.
func FilterLength(docs []source.Document, min source.MinLength) []source.Document {
	out := make([]source.Document, 0, len(docs))
	for _, d := range docs {
		if utf8.RuneCountInString(d.Text) < min.For(d.Origin) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FilterRecent keeps documents with no timestamp and documents published no
// more than lookback before now.
func FilterRecent(docs []source.Document, now time.Time, lookback time.Duration) []source.Document {
	out := make([]source.Document, 0, len(docs))
	for _, d := range docs {
		if d.PublishedAt != nil && now.Sub(*d.PublishedAt) > lookback {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Score ranks a document: length/1500 plus 1/max(1, hours since publication)
// when the timestamp is known, plus SocialBonus for the social origin class.
func Score(d source.Document, now time.Time) float64 {
	s := float64(utf8.RuneCountInString(d.Text)) / LengthUnit
	if d.PublishedAt != nil {
		hours := now.Sub(*d.PublishedAt).Hours()
		s += 1 / math.Max(1, hours)
	}
	if d.Class() == source.ClassSocial {
		s += SocialBonus
	}
	return s
}

// Rank returns docs ordered by descending score. Equal scores keep discovery
// order (Index, then input position).
func Rank(docs []source.Document, now time.Time) []source.Document {
	type scored struct {
		doc   source.Document
		score float64
	}
	tmp := make([]scored, len(docs))
	for i, d := range docs {
		tmp[i] = scored{doc: d, score: Score(d, now)}
	}
	sort.SliceStable(tmp, func(i, j int) bool {
		if tmp[i].score != tmp[j].score {
			return tmp[i].score > tmp[j].score
		}
		return tmp[i].doc.Index < tmp[j].doc.Index
	})
	out := make([]source.Document, len(tmp))
	for i, s := range tmp {
		out[i] = s.doc
	}
	return out
}

// Select applies the length rule, the recency window and ranking, and returns
// at most opt.TopN documents.
func Select(docs []source.Document, now time.Time, opt Options) []source.Document {
	eligible := FilterRecent(FilterLength(docs, opt.MinLength), now, opt.Lookback)
	ranked := Rank(eligible, now)
	if opt.TopN < 0 {
		opt.TopN = 0
	}
	if len(ranked) > opt.TopN {
		ranked = ranked[:opt.TopN]
	}
	return ranked
}
