// Package artifact defines the JSON document consumed by the display layer
// and writes it.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hyperifyio/companywatch/internal/signals"
	"github.com/hyperifyio/companywatch/internal/source"
)

// TimeLayout is the format of generated_at.
const TimeLayout = "2006-01-02T15:04:05Z"

// Source is the persisted subset of a candidate.
type Source struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Origin      string     `json:"origin"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Meta carries run parameters the display layer shows.
type Meta struct {
	LookbackDays   int `json:"lookback_days"`
	TextsSelected  int `json:"texts_selected"`
	ReportMaxTexts int `json:"report_max_texts"`
}

// Artifact is the complete output of one run. Each run replaces the previous
// artifact entirely.
type Artifact struct {
	Company           string           `json:"company"`
	GeneratedAt       string           `json:"generated_at"`
	Signals           []signals.Signal `json:"signals"`
	Sources           []Source         `json:"sources"`
	ReportMarkdown    string           `json:"report_markdown"`
	ReportUsedSources []Source         `json:"report_used_sources"`
	Meta              Meta             `json:"meta"`
}

// FormatTime renders t in UTC at second precision.
func FormatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// SourcesFrom converts candidates to persisted sources. The result is never
// nil so it encodes as an empty array.
func SourcesFrom(refs []source.Ref) []Source {
	out := make([]Source, 0, len(refs))
	for _, r := range refs {
		s := Source{URL: r.URL, Title: r.Title, Origin: r.Origin}
		if r.PublishedAt != nil {
			t := r.PublishedAt.UTC().Truncate(time.Second)
			s.PublishedAt = &t
		}
		out = append(out, s)
	}
	return out
}

// ErrInvalid wraps every schema violation reported by Validate.
var ErrInvalid = errors.New("invalid artifact")

// Validate checks the invariants the display layer relies on: company and
// generated_at are set, signals are non-empty with typed entries and
// confidences within [0, 1], and slices are non-nil.
func Validate(a Artifact) error {
	var problems []string
	if strings.TrimSpace(a.Company) == "" {
		problems = append(problems, "company is empty")
	}
	if _, err := time.Parse(TimeLayout, a.GeneratedAt); err != nil {
		problems = append(problems, fmt.Sprintf("generated_at %q is not %s", a.GeneratedAt, TimeLayout))
	}
	if len(a.Signals) == 0 {
		problems = append(problems, "signals is empty")
	}
	for i, s := range a.Signals {
		if strings.TrimSpace(s.Type) == "" {
			problems = append(problems, fmt.Sprintf("signal %d has no type", i))
		}
		if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
			problems = append(problems, fmt.Sprintf("signal %d confidence %v out of range", i, s.Confidence))
		}
	}
	if a.Sources == nil {
		problems = append(problems, "sources is nil")
	}
	if a.ReportUsedSources == nil {
		problems = append(problems, "report_used_sources is nil")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Marshal encodes a with two-space indentation, without HTML escaping and
// with a trailing newline.
func Marshal(a Artifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
