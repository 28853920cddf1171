package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperifyio/companywatch/internal/source"
)

// manifestEntry records one selected document and a digest of the exact text
// handed to the extraction stage.
type manifestEntry struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Origin string `json:"origin"`
	SHA256 string `json:"sha256"`
	Chars  int    `json:"chars"`
}

// manifestMeta captures run details that aid reproducibility.
type manifestMeta struct {
	RunID         string    `json:"run_id"`
	Version       string    `json:"version"`
	Company       string    `json:"company"`
	Model         string    `json:"model"`
	LLMBaseURL    string    `json:"llm_base_url"`
	Candidates    int       `json:"candidates"`
	Fetched       int       `json:"fetched"`
	FetchFailures int       `json:"fetch_failures"`
	Selected      int       `json:"selected"`
	Signals       int       `json:"signals"`
	SignalStage   string    `json:"signal_stage"`
	Report        bool      `json:"report"`
	HTTPCache     bool      `json:"http_cache"`
	LLMCache      bool      `json:"llm_cache"`
	GeneratedAt   time.Time `json:"generated_at"`
}

func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func buildManifestEntries(docs []source.Document) []manifestEntry {
	out := make([]manifestEntry, 0, len(docs))
	for i, d := range docs {
		content := strings.TrimSpace(d.Text)
		out = append(out, manifestEntry{
			Index:  i + 1,
			URL:    strings.TrimSpace(d.URL),
			Title:  strings.TrimSpace(d.Title),
			Origin: d.Origin,
			SHA256: computeSHA256Hex(content),
			Chars:  utf8.RuneCountInString(content),
		})
	}
	return out
}

func marshalManifestJSON(meta manifestMeta, entries []manifestEntry) ([]byte, error) {
	payload := struct {
		Meta      manifestMeta    `json:"meta"`
		Documents []manifestEntry `json:"documents"`
	}{Meta: meta, Documents: entries}
	return json.MarshalIndent(payload, "", "  ")
}

// deriveManifestSidecarPath returns the sidecar path next to the artifact.
func deriveManifestSidecarPath(outputPath string) string {
	return outputPath + ".manifest.json"
}
