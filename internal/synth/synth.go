package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/companywatch/internal/cache"
	"github.com/hyperifyio/companywatch/internal/llm"
	"github.com/hyperifyio/companywatch/internal/signals"
	"github.com/hyperifyio/companywatch/internal/source"
)

const (
	// DocChars bounds each document excerpt.
	DocChars = 3500
	// PayloadChars bounds the joined excerpts.
	PayloadChars = 24000
	// DigestSignals caps the signals summarized for the model.
	DigestSignals = 12
)

// Sections are the H2 headings of every report, in order.
var Sections = []string{
	"Executive Summary",
	"Financials",
	"Strategy",
	"Products & Innovation",
	"Leadership & Organisation",
	"Markets & Competition",
	"Sustainability & ESG",
	"Risks",
	"Outlook",
}

var (
	// ErrNotConfigured means no backend is available.
	ErrNotConfigured = errors.New("synthesizer not configured")
	// ErrNoUsableSources means there is nothing the report could cite.
	ErrNoUsableSources = errors.New("no usable sources")
	// ErrNoSubstantiveBody indicates the model produced no usable Markdown body.
	ErrNoSubstantiveBody = errors.New("no substantive body")
)

// Input bundles everything the report is built from.
type Input struct {
	Company string
	// Docs are the selected documents in ranked order.
	Docs    []source.Document
	Signals []signals.Signal
	// Sources is the full deduplicated candidate list.
	Sources []source.Ref
}

// Report is the narrative plus the closed source list its [n] markers index.
type Report struct {
	Markdown  string
	Sources   []source.Ref
	Citations Citations
}

// Synthesizer calls the LLM to produce a Markdown report over a closed,
// numbered source list.
type Synthesizer struct {
	Client  llm.Client
	Backend llm.Backend
	Cache   *cache.LLMCache
	// MaxTexts caps the documents supplied. Zero means 12.
	MaxTexts int
	// MinCitations is the number of distinct sources the model should cite.
	MinCitations int
	// AllowAllSources numbers the full source list instead of only the
	// supplied documents.
	AllowAllSources bool
	// Language is a hint for the output language; empty means English.
	Language string
	Timeout  time.Duration
	// SystemPrompt, when non-empty, overrides the default system message.
	SystemPrompt string
}

// Synthesize returns the report or an error. On error the Report is always
// empty, so callers can persist it unconditionally.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (Report, error) {
	if s.Client == nil || !s.Backend.Configured() {
		return Report{}, ErrNotConfigured
	}
	docs := in.Docs
	if max := s.maxTexts(); len(docs) > max {
		docs = docs[:max]
	}
	closed := ClosedList(in.Sources, docs, s.AllowAllSources)
	if len(closed) == 0 {
		return Report{}, ErrNoUsableSources
	}

	system := s.systemMessage()
	user := buildUserMessage(in.Company, docs, in.Signals, closed)

	md, err := s.complete(ctx, system, user)
	if err != nil {
		return Report{}, err
	}
	cites := ValidateCitations(md, len(closed))
	if len(cites.OutOfRange) > 0 {
		ctxLogger(ctx).Warn().Str("stage", "report").Ints("out_of_range", cites.OutOfRange).Int("sources", len(closed)).Msg("removing citations outside the source list")
		md = StripOutOfRange(md, len(closed))
	}
	return Report{Markdown: md, Sources: closed, Citations: cites}, nil
}

// ctxLogger returns the logger carried by ctx, or the global one.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func (s *Synthesizer) maxTexts() int {
	if s.MaxTexts <= 0 {
		return 12
	}
	return s.MaxTexts
}

func (s *Synthesizer) complete(ctx context.Context, system, user string) (string, error) {
	key := cache.KeyFrom(s.Backend.Model, system+"\n\n"+user)
	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var out struct {
				Markdown string `json:"markdown"`
			}
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Markdown) != "" {
				return out.Markdown, nil
			}
		}
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	res := llm.Complete(ctx, s.Client, openai.ChatCompletionRequest{
		Model: s.Backend.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		N:           1,
	})
	if !res.OK() {
		return "", fmt.Errorf("report call: %w", res.Err)
	}
	out := strings.TrimSpace(res.Content)
	if out == "" {
		return "", ErrNoSubstantiveBody
	}
	if s.Cache != nil {
		payload, _ := json.Marshal(map[string]string{"markdown": out})
		_ = s.Cache.Save(ctx, key, payload)
	}
	return out, nil
}

// ClosedList returns the sources the report may cite: the entries of sources
// whose URL belongs to one of docs, in source order. With all set the full
// list is returned.
func ClosedList(sources []source.Ref, docs []source.Document, all bool) []source.Ref {
	if all {
		return append([]source.Ref(nil), sources...)
	}
	used := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		used[d.URL] = struct{}{}
	}
	out := make([]source.Ref, 0, len(docs))
	for _, r := range sources {
		if _, ok := used[r.URL]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Synthesizer) systemMessage() string {
	if strings.TrimSpace(s.SystemPrompt) != "" {
		return s.SystemPrompt
	}
	lang := strings.TrimSpace(s.Language)
	if lang == "" {
		lang = "English"
	}
	var sb strings.Builder
	sb.WriteString("You are an analyst. Write a fact-based report about the company.\n")
	sb.WriteString("Structure (H2 headings, in this order):\n")
	for _, h := range Sections {
		sb.WriteString("## ")
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRules:\n")
	sb.WriteString(fmt.Sprintf("- Write in %s, 600 to 1200 words.\n", lang))
	sb.WriteString("- Support statements with citation numbers [n] from the numbered source list.\n")
	if s.MinCitations > 0 {
		sb.WriteString(fmt.Sprintf("- Try to cite at least %d different sources where sensible.\n", s.MinCitations))
	}
	sb.WriteString("- Cite only numbers that appear in the source list.\n")
	sb.WriteString("- No promotional language, no invented sources or figures.")
	return sb.String()
}

func buildUserMessage(company string, docs []source.Document, sigs []signals.Signal, closed []source.Ref) string {
	var sb strings.Builder
	sb.WriteString("Company: ")
	sb.WriteString(company)
	sb.WriteString("\n\nAvailable signals (compact):\n")
	sb.WriteString(digest(sigs))
	sb.WriteString("\n\nArticle and post excerpts:\n")
	sb.WriteString(excerpts(docs))
	sb.WriteString("\n\nSource list (only these may be cited):\n")
	sb.WriteString(numbered(closed))
	sb.WriteString("\n\nWrite the report.")
	return sb.String()
}

func digest(sigs []signals.Signal) string {
	if len(sigs) > DigestSignals {
		sigs = sigs[:DigestSignals]
	}
	lines := make([]string, 0, len(sigs))
	for _, s := range sigs {
		lines = append(lines, fmt.Sprintf("- type=%s; headline=%s; metric=%s; topic=%s; summary=%s",
			s.Type, s.Value["headline"], s.Value["metric"], s.Value["topic"], s.Value["summary"]))
	}
	return strings.Join(lines, "\n")
}

func excerpts(docs []source.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			title = "(untitled)"
		}
		parts = append(parts, "# "+title+"\n"+truncateRunes(d.Text, DocChars))
	}
	return truncateRunes(strings.Join(parts, "\n\n---\n\n"), PayloadChars)
}

// numbered renders "[i] title — url" lines starting at 1.
func numbered(refs []source.Ref) string {
	lines := make([]string, 0, len(refs))
	for i, r := range refs {
		title := strings.TrimSpace(r.Title)
		if title != "" {
			title += " — "
		}
		lines = append(lines, fmt.Sprintf("[%d] %s%s", i+1, title, strings.TrimSpace(r.URL)))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
