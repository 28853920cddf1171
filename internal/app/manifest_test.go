package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hyperifyio/companywatch/internal/source"
)

func TestBuildManifestEntries_ComputesSHA256AndChars(t *testing.T) {
	docs := []source.Document{
		{Ref: source.Ref{URL: "https://example.com/a", Title: "A", Origin: "newsroom"}, Text: "hello"},
		{Ref: source.Ref{URL: " https://example.com/b ", Title: "B", Origin: "social"}, Text: "grüße\n"},
	}
	entries := buildManifestEntries(docs)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries; got %d", len(entries))
	}
	if entries[0].Chars != 5 || entries[1].Chars != 5 {
		t.Fatalf("unexpected char counts: %+v", entries)
	}
	if entries[0].SHA256 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("unexpected digest %s", entries[0].SHA256)
	}
	if entries[1].Index != 2 || entries[1].URL != "https://example.com/b" || entries[1].Origin != "social" {
		t.Fatalf("unexpected entry %+v", entries[1])
	}
}

func TestMarshalManifestJSON(t *testing.T) {
	meta := manifestMeta{RunID: "r1", Model: "m", Selected: 1, GeneratedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, err := marshalManifestJSON(meta, []manifestEntry{{Index: 1, URL: "u", SHA256: "abcd", Chars: 4}})
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]json.RawMessage
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if _, ok := back["meta"]; !ok {
		t.Fatal("missing meta")
	}
	if _, ok := back["documents"]; !ok {
		t.Fatal("missing documents")
	}
	if got := deriveManifestSidecarPath("data/latest.json"); got != "data/latest.json.manifest.json" {
		t.Fatalf("sidecar path %q", got)
	}
}
