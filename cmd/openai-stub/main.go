package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// openai-stub answers the extraction and report prompts with canned content
// so the pipeline can run end to end without a model.

type chatRequest struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

var (
	sourceLineRe = regexp.MustCompile(`(?m)^\[(\d+)\] `)
	titleLineRe  = regexp.MustCompile(`(?m)^(?:### |Title: )(.+)$`)
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}
	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) < 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sys := strings.TrimSpace(req.Messages[0].Content)
		user := req.Messages[1].Content

		var content string
		switch {
		case req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object":
			content = signalsReply(user, strings.HasPrefix(sys, "Extract up to 2"))
		case strings.Contains(sys, "Write a fact-based report"):
			content = reportReply(user)
		default:
			http.Error(w, "unexpected system prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-stub",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	})
	return mux
}

// signalsReply turns each document title in the prompt into one signal.
func signalsReply(user string, backfill bool) string {
	max := 8
	if backfill {
		max = 2
	}
	types := []string{"financial", "strategy", "markets", "product", "leadership", "sustainability", "risks"}
	var sigs []map[string]any
	for i, m := range titleLineRe.FindAllStringSubmatch(user, -1) {
		if len(sigs) >= max {
			break
		}
		sigs = append(sigs, map[string]any{
			"type":       types[i%len(types)],
			"value":      map[string]string{"headline": strings.TrimSpace(m[1]), "topic": "stub"},
			"confidence": 0.6,
		})
	}
	if sigs == nil {
		sigs = []map[string]any{}
	}
	b, _ := json.Marshal(map[string]any{"signals": sigs})
	return string(b)
}

// reportReply writes every section and cites each numbered source once.
func reportReply(user string) string {
	var cites []string
	for _, m := range sourceLineRe.FindAllStringSubmatch(user, -1) {
		cites = append(cites, "["+m[1]+"]")
	}
	cite := strings.Join(cites, "")
	sections := []string{"Executive Summary", "Financials", "Strategy", "Products & Innovation", "Leadership & Organisation", "Markets & Competition", "Sustainability & ESG", "Risks", "Outlook"}
	var sb strings.Builder
	for _, s := range sections {
		sb.WriteString("## " + s + "\n")
		sb.WriteString("Stub paragraph for " + s + " " + cite + "\n\n")
	}
	return strings.TrimSpace(sb.String())
}
