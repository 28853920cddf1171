package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/hyperifyio/companywatch/internal/signals"
	"github.com/hyperifyio/companywatch/internal/source"
)

func sample() Artifact {
	pub := time.Date(2024, 6, 1, 10, 0, 0, 500, time.FixedZone("CEST", 2*3600))
	return Artifact{
		Company:     "Pernod Ricard",
		GeneratedAt: FormatTime(time.Date(2024, 6, 2, 3, 4, 5, 999, time.UTC)),
		Signals: []signals.Signal{{
			Type:       signals.TypeSummary,
			Value:      signals.Value{"headline": "Umsatz & Ausblick <2025>"},
			Confidence: 0.35,
		}},
		Sources:           SourcesFrom([]source.Ref{{URL: "https://example.com/a?x=1&y=2", Title: "A", Origin: "news:de", PublishedAt: &pub, Snippet: "not persisted"}}),
		ReportUsedSources: SourcesFrom(nil),
		Meta:              Meta{LookbackDays: 7, TextsSelected: 1, ReportMaxTexts: 12},
	}
}

func TestMarshal_Shape(t *testing.T) {
	b, err := Marshal(sample())
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.HasSuffix(s, "}\n"))
	assert.Contains(t, s, "\n  \"company\": \"Pernod Ricard\"")
	assert.Contains(t, s, `"generated_at": "2024-06-02T03:04:05Z"`)
	assert.Contains(t, s, "Umsatz & Ausblick <2025>", "no HTML escaping")
	assert.Contains(t, s, `"url": "https://example.com/a?x=1&y=2"`)
	assert.Contains(t, s, `"published_at": "2024-06-01T08:00:00Z"`)
	assert.NotContains(t, s, "snippet")

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &generic))
	for _, k := range []string{"company", "generated_at", "signals", "sources", "report_markdown", "report_used_sources", "meta"} {
		assert.Contains(t, generic, k)
	}
	assert.JSONEq(t, `[]`, string(generic["report_used_sources"]))
	assert.JSONEq(t, `{"lookback_days":7,"texts_selected":1,"report_max_texts":12}`, string(generic["meta"]))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(sample()))

	bad := []func(*Artifact){
		func(a *Artifact) { a.Company = " " },
		func(a *Artifact) { a.GeneratedAt = "2024-06-02 03:04:05" },
		func(a *Artifact) { a.Signals = nil },
		func(a *Artifact) { a.Signals[0].Confidence = 1.5 },
		func(a *Artifact) { a.Signals[0].Type = "" },
		func(a *Artifact) { a.Sources = nil },
	}
	for i, mutate := range bad {
		a := sample()
		a.Signals = append([]signals.Signal(nil), a.Signals...)
		mutate(&a)
		err := Validate(a)
		assert.True(t, errors.Is(err, ErrInvalid), "case %d: %v", i, err)
	}
}

func TestWriter_CreatesDirAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "latest.json")
	w := &Writer{Path: path}

	first := sample()
	_, err := w.Write(context.Background(), first)
	require.NoError(t, err)

	second := sample()
	second.Company = "Other"
	data, err := w.Write(context.Background(), second)
	require.NoError(t, err)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
	assert.Contains(t, string(onDisk), `"company": "Other"`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp or probe files left behind")
}

func TestWriter_InvalidArtifactWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &Writer{Path: filepath.Join(dir, "latest.json")}
	bad := sample()
	bad.Signals = nil
	_, err := w.Write(context.Background(), bad)
	require.Error(t, err)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "directory must not be created for an invalid artifact")
}

func TestWriter_CancelledContextKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.json")
	w := &Writer{Path: path}
	_, err := w.Write(context.Background(), sample())
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := sample()
	next.Company = "Other"
	_, err = w.Write(ctx, next)
	assert.ErrorIs(t, err, context.Canceled)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriter_EnsureDirFailsOnFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	w := &Writer{Path: filepath.Join(blocker, "latest.json")}
	assert.Error(t, w.EnsureDir())
}

func newTestSink(t *testing.T, handler http.Handler) *GCSSink {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := gcs.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return &GCSSink{Client: client, Bucket: "test-bucket", Object: "company/latest.json"}
}

func TestGCSSink_Put(t *testing.T) {
	payload := []byte(`{"company":"Acme"}`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "company/latest.json", r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), string(payload))
		fmt.Fprintln(w, `{ "name": "company/latest.json" }`)
	})
	sink := newTestSink(t, handler)
	assert.NoError(t, sink.Put(context.Background(), payload))
}

func TestGCSSink_PutError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	sink := newTestSink(t, handler)
	assert.Error(t, sink.Put(context.Background(), []byte("{}")))
}
