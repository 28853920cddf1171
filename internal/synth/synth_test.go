package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/companywatch/internal/cache"
	"github.com/hyperifyio/companywatch/internal/llm"
	"github.com/hyperifyio/companywatch/internal/signals"
	"github.com/hyperifyio/companywatch/internal/source"
)

type capturingClient struct {
	lastReq openai.ChatCompletionRequest
	reply   string
	err     error
	calls   int
}

func (c *capturingClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	c.calls++
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: c.reply},
		}},
	}, nil
}

var backend = llm.Backend{Model: "test-model", APIKey: "k"}

func fixture(total int, selected ...int) ([]source.Ref, []source.Document) {
	refs := make([]source.Ref, total)
	for i := range refs {
		refs[i] = source.Ref{URL: fmt.Sprintf("https://example.com/%d", i), Title: fmt.Sprintf("Source %d", i), Origin: source.OriginNewsroom}
	}
	docs := make([]source.Document, 0, len(selected))
	for _, i := range selected {
		docs = append(docs, source.Document{Ref: refs[i], Text: "body of " + refs[i].Title})
	}
	return refs, docs
}

func TestSynthesize_ClosedListOnlyHoldsSuppliedDocuments(t *testing.T) {
	refs, docs := fixture(9, 7, 2)
	cc := &capturingClient{reply: "## Executive Summary\nGrowth [1], margin [2], rumor [3], other [9]."}
	s := &Synthesizer{Client: cc, Backend: backend}
	rep, err := s.Synthesize(context.Background(), Input{Company: "Acme", Docs: docs, Sources: refs})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(rep.Sources) != 2 {
		t.Fatalf("closed list has %d entries, want 2", len(rep.Sources))
	}
	// Closed list keeps source order, not ranking order
	if rep.Sources[0].URL != refs[2].URL || rep.Sources[1].URL != refs[7].URL {
		t.Fatalf("unexpected closed list %+v", rep.Sources)
	}
	user := cc.lastReq.Messages[1].Content
	if !strings.Contains(user, "[1] Source 2 — https://example.com/2\n[2] Source 7 — https://example.com/7") {
		t.Fatalf("numbered list missing from prompt:\n%s", user)
	}
	if strings.Contains(user, "[3]") {
		t.Fatalf("prompt numbers sources beyond the closed list")
	}
	cites := ValidateCitations(rep.Markdown, len(rep.Sources))
	if len(cites.OutOfRange) != 0 {
		t.Fatalf("out of range citations survived: %v in %q", cites.OutOfRange, rep.Markdown)
	}
	if !strings.Contains(rep.Markdown, "Growth [1], margin [2], rumor , other .") {
		t.Fatalf("unexpected markdown %q", rep.Markdown)
	}
	if got := rep.Citations.OutOfRange; len(got) != 2 || got[0] != 3 || got[1] != 9 {
		t.Fatalf("expected recorded out-of-range [3 9], got %v", got)
	}
}

func TestSynthesize_CitationWarningUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("run_id", "run-7").Logger()
	ctx := logger.WithContext(context.Background())

	refs, docs := fixture(3, 0)
	cc := &capturingClient{reply: "## Executive Summary\nA [1], B [5]."}
	s := &Synthesizer{Client: cc, Backend: backend}
	if _, err := s.Synthesize(ctx, Input{Company: "Acme", Docs: docs, Sources: refs}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-7"`) || !strings.Contains(out, "removing citations") {
		t.Fatalf("warning not logged with run id: %s", out)
	}
}

func TestSynthesize_AllSources(t *testing.T) {
	refs, docs := fixture(5, 0)
	cc := &capturingClient{reply: "text [5]"}
	s := &Synthesizer{Client: cc, Backend: backend, AllowAllSources: true}
	rep, err := s.Synthesize(context.Background(), Input{Company: "Acme", Docs: docs, Sources: refs})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Sources) != 5 || rep.Markdown != "text [5]" {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestSynthesize_FailuresYieldEmptyReport(t *testing.T) {
	refs, docs := fixture(3, 0, 1)
	cases := map[string]*Synthesizer{
		"backend error": {Client: &capturingClient{err: errors.New("boom")}, Backend: backend},
		"empty reply":   {Client: &capturingClient{reply: "   "}, Backend: backend},
		"unconfigured":  {Client: &capturingClient{reply: "x"}, Backend: llm.Backend{Model: "m"}},
	}
	for name, s := range cases {
		rep, err := s.Synthesize(context.Background(), Input{Company: "Acme", Docs: docs, Sources: refs})
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if rep.Markdown != "" || len(rep.Sources) != 0 {
			t.Fatalf("%s: expected empty report, got %+v", name, rep)
		}
	}
	s := &Synthesizer{Client: &capturingClient{reply: "x"}, Backend: backend}
	if _, err := s.Synthesize(context.Background(), Input{Company: "Acme", Sources: refs}); !errors.Is(err, ErrNoUsableSources) {
		t.Fatalf("expected ErrNoUsableSources, got %v", err)
	}
}

func TestSynthesize_PromptShape(t *testing.T) {
	refs, docs := fixture(20, 0, 1, 2, 3, 4)
	docs[0].Text = strings.Repeat("z", DocChars+100)
	sigs := make([]signals.Signal, 15)
	for i := range sigs {
		sigs[i] = signals.Signal{Type: "strategy", Value: signals.Value{"headline": fmt.Sprintf("h%d", i)}}
	}
	cc := &capturingClient{reply: "ok"}
	s := &Synthesizer{Client: cc, Backend: backend, MaxTexts: 3, MinCitations: 6, Language: "German"}
	rep, err := s.Synthesize(context.Background(), Input{Company: "Acme", Docs: docs, Sources: refs, Signals: sigs})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Sources) != 3 {
		t.Fatalf("MaxTexts not applied: %d", len(rep.Sources))
	}
	sys := cc.lastReq.Messages[0].Content
	for _, h := range Sections {
		if !strings.Contains(sys, "## "+h+"\n") {
			t.Fatalf("missing section %q", h)
		}
	}
	if !strings.Contains(sys, "Write in German") || !strings.Contains(sys, "at least 6 different sources") {
		t.Fatalf("system prompt missing rules:\n%s", sys)
	}
	user := cc.lastReq.Messages[1].Content
	if strings.Contains(user, strings.Repeat("z", DocChars+1)) {
		t.Fatalf("excerpt not truncated")
	}
	if !strings.Contains(user, "headline=h11") || strings.Contains(user, "headline=h12") {
		t.Fatalf("digest should hold the first %d signals", DigestSignals)
	}
}

func TestSynthesize_Cache(t *testing.T) {
	refs, docs := fixture(2, 0)
	cc := &capturingClient{reply: "cached [1]"}
	s := &Synthesizer{Client: cc, Backend: backend, Cache: &cache.LLMCache{Dir: t.TempDir()}}
	for i := 0; i < 2; i++ {
		rep, err := s.Synthesize(context.Background(), Input{Company: "Acme", Docs: docs, Sources: refs})
		if err != nil || rep.Markdown != "cached [1]" {
			t.Fatalf("run %d: %v %+v", i, err, rep)
		}
	}
	if cc.calls != 1 {
		t.Fatalf("expected one backend call, got %d", cc.calls)
	}
}

func TestStripOutOfRange(t *testing.T) {
	if got := StripOutOfRange("a [0] b [1] c [12] d [2]", 2); got != "a  b [1] c  d [2]" {
		t.Fatalf("got %q", got)
	}
}
