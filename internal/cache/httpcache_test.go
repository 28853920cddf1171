package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHTTPCache_SaveLoad(t *testing.T) {
	t.Parallel()
	c := &HTTPCache{Dir: t.TempDir()}
	url := "https://example.com/media/a"
	if err := c.Save(context.Background(), url, "text/html", `"v1"`, "Mon, 01 Jan 2024 00:00:00 GMT", []byte("hello")); err != nil {
		t.Fatalf("save: %v", err)
	}
	meta, err := c.LoadMeta(context.Background(), url)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.ETag != `"v1"` || meta.URL != url {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	body, err := c.LoadBody(context.Background(), url)
	if err != nil || string(body) != "hello" {
		t.Fatalf("body=%q err=%v", body, err)
	}
}

func TestHTTPCache_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "http")
	c := &HTTPCache{Dir: dir, StrictPerms: true}
	url := "https://example.com/x"
	if err := c.Save(context.Background(), url, "text/html", "etag", "", []byte("hello")); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	key := c.key(url)
	for _, f := range []string{filepath.Join(dir, key+".body"), filepath.Join(dir, key+".meta.json")} {
		finfo, err := os.Stat(f)
		if err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
		if got := finfo.Mode() & 0o777; got != 0o600 {
			t.Fatalf("%s mode = %o, want 0600", f, got)
		}
	}
}

func TestPurgeHTTPCacheByAge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	if err := c.Save(context.Background(), "https://a.com/old", "text/html", "", "", []byte("old")); err != nil {
		t.Fatal(err)
	}
	// Rewrite SavedAt into the past
	key := c.key("https://a.com/old")
	old := `{"url":"https://a.com/old","saved_at":"2000-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, key+".meta.json"), []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(context.Background(), "https://a.com/new", "text/html", "", "", []byte("new")); err != nil {
		t.Fatal(err)
	}
	removed, err := PurgeHTTPCacheByAge(dir, time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed=%d, want 1", removed)
	}
	if _, err := c.LoadBody(context.Background(), "https://a.com/old"); err == nil {
		t.Fatal("expected old body removed")
	}
	if _, err := c.LoadBody(context.Background(), "https://a.com/new"); err != nil {
		t.Fatalf("new body missing: %v", err)
	}
}

func TestPurge_MissingDirIsNoop(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "nope")
	if n, err := PurgeHTTPCacheByAge(missing, time.Hour); err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if n, err := PurgeLLMCacheByAge(missing, time.Hour); err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
