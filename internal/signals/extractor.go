package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/companywatch/internal/cache"
	"github.com/hyperifyio/companywatch/internal/llm"
	"github.com/hyperifyio/companywatch/internal/source"
)

const (
	// BatchDocChars bounds each document body in the batch payload.
	BatchDocChars = 5000
	// BatchPayloadChars bounds the whole batch payload.
	BatchPayloadChars = 20000
	// BackfillDocChars bounds the body sent in a per-document request.
	BackfillDocChars = 6000
	// BackfillDocs is how many top documents backfill may visit.
	BackfillDocs = 6
	// BackfillPerDoc caps signals taken from one backfill response.
	BackfillPerDoc = 2
	// MinBatchSignals is the batch yield below which backfill runs.
	MinBatchSignals = 3
	// FallbackExcerptChars bounds the excerpt in the fallback signal.
	FallbackExcerptChars = 280

	// EmptyConfidence is the confidence of the fallback when nothing was selected.
	EmptyConfidence = 0.2
	// ExcerptConfidence is the confidence of the fallback built from a document.
	ExcerptConfidence = 0.35

	// NoContentSummary is the fallback summary when no document was selected.
	NoContentSummary = "No usable content found."
	fallbackNote     = "Fallback"
)

// Stage names which step produced the final signals.
type Stage string

const (
	StageBatch    Stage = "batch"
	StageBackfill Stage = "backfill"
	StageFallback Stage = "fallback"
)

// Outcome reports the signals of a run and how they were obtained.
type Outcome struct {
	Signals []Signal
	Stage   Stage
	// BatchCount and BackfillCount are the validated signals each step
	// returned before dedupe.
	BatchCount    int
	BackfillCount int
	// BackfillCalls is the number of per-document requests issued.
	BackfillCalls int
	// Failures counts backend calls that errored or returned unusable output.
	Failures int
}

// Extractor asks the configured backend for signals and always returns at
// least one.
type Extractor struct {
	Client  llm.Client
	Backend llm.Backend
	Company string
	// Limit caps the number of signals. Zero or less means 8.
	Limit int
	// Timeout bounds each backend call. Zero means no extra bound.
	Timeout time.Duration
	// Cache replays identical requests when set.
	Cache *cache.LLMCache
}

const batchSystemPrompt = `You extract factual, structured signals about a company from the supplied sources.
Return at least 3 and at most 8 signals.
Respond with JSON only, in exactly this shape:
{"signals": [{"type": "financial|strategy|markets|risks|product|leadership|sustainability",
  "value": {"headline": "...", "metric": "...", "value": "...", "unit": "...", "topic": "...",
            "summary": "...", "note": "...", "period": "...", "region": "..."},
  "confidence": 0.0}]}
Use only facts stated in the sources. Omit fields you cannot fill.`

const backfillSystemPrompt = `Extract up to 2 factual signals about the company from the article.
Respond with JSON only: {"signals": [{"type": "...", "value": {...}, "confidence": 0.0}]} using the same fields as before: headline, metric, value, unit, topic, summary, note, period, region.`

// Extract runs batch extraction, per-document backfill when the batch was too
// thin, dedupe, and the heuristic fallback when nothing usable remains. docs
// must be in ranked order. Backend failures never escape.
func (e *Extractor) Extract(ctx context.Context, docs []source.Document) Outcome {
	limit := e.limit()
	if e.Client == nil || !e.Backend.Configured() || len(docs) == 0 {
		return Outcome{Signals: Fallback(e.Company, docs), Stage: StageFallback}
	}

	var o Outcome
	batch, ok := e.call(ctx, batchSystemPrompt, e.batchPayload(docs))
	if !ok {
		o.Failures++
	}
	if len(batch) > limit {
		batch = batch[:limit]
	}
	o.BatchCount = len(batch)
	all := batch
	o.Stage = StageBatch

	if len(all) < MinBatchSignals {
		o.Stage = StageBackfill
		n := BackfillDocs
		if len(docs) < n {
			n = len(docs)
		}
		for _, d := range docs[:n] {
			got, ok := e.call(ctx, backfillSystemPrompt, e.backfillPayload(d))
			o.BackfillCalls++
			if !ok {
				o.Failures++
			}
			if len(got) > BackfillPerDoc {
				got = got[:BackfillPerDoc]
			}
			o.BackfillCount += len(got)
			all = append(all, got...)
			if len(all) >= limit {
				break
			}
		}
	}

	o.Signals = Dedupe(all, limit)
	if len(o.Signals) == 0 {
		o.Signals = Fallback(e.Company, docs)
		o.Stage = StageFallback
	}
	return o
}

func (e *Extractor) limit() int {
	if e.Limit <= 0 {
		return 8
	}
	return e.Limit
}

// call issues one request and parses it. ok is false when the backend failed
// or the reply did not parse into the documented envelope.
func (e *Extractor) call(ctx context.Context, system, user string) ([]Signal, bool) {
	var key string
	if e.Cache != nil {
		key = cache.KeyFrom(e.Backend.Model, system+"\n\n"+user)
		if b, hit, _ := e.Cache.Get(ctx, key); hit {
			return Parse(string(b)), true
		}
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	res := llm.Complete(ctx, e.Client, openai.ChatCompletionRequest{
		Model:       e.Backend.Model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if !res.OK() {
		ctxLogger(ctx).Warn().Str("stage", "signals").Err(res.Err).Msg("extraction call failed")
		return nil, false
	}
	out := Parse(res.Content)
	if out == nil {
		ctxLogger(ctx).Warn().Str("stage", "signals").Int("chars", len(res.Content)).Msg("extraction reply did not parse")
		return nil, false
	}
	if e.Cache != nil {
		_ = e.Cache.Save(ctx, key, []byte(res.Content))
	}
	return out, true
}

// ctxLogger returns the logger carried by ctx, or the global one.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func (e *Extractor) batchPayload(docs []source.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, fmt.Sprintf("### %s\n%s", titleOr(d.Title, "(untitled)"), truncateRunes(d.Text, BatchDocChars)))
	}
	joined := truncateRunes(strings.Join(parts, "\n\n"), BatchPayloadChars)
	return fmt.Sprintf("Company: %s\nSources:\n%s", e.Company, joined)
}

func (e *Extractor) backfillPayload(d source.Document) string {
	return fmt.Sprintf("Company: %s\nTitle: %s\nText:\n%s", e.Company, d.Title, truncateRunes(d.Text, BackfillDocChars))
}

// Fallback synthesizes exactly one summary signal. With no documents it is a
// low-confidence note; otherwise it quotes the first (highest ranked) one.
func Fallback(company string, docs []source.Document) []Signal {
	if len(docs) == 0 {
		return []Signal{{
			Type:       TypeSummary,
			Value:      Value{"headline": company, "summary": NoContentSummary, "note": fallbackNote},
			Confidence: EmptyConfidence,
		}}
	}
	head := docs[0]
	return []Signal{{
		Type: TypeSummary,
		Value: Value{
			"headline": titleOr(head.Title, company),
			"summary":  truncateRunes(head.Text, FallbackExcerptChars),
			"note":     fallbackNote,
		},
		Confidence: ExcerptConfidence,
	}}
}

func titleOr(title, fallback string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return fallback
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
