package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/companywatch/internal/artifact"
)

func TestWriteReportPDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.pdf")
	a := artifact.Artifact{
		Company:        "Pernod Ricard",
		GeneratedAt:    "2024-06-10T12:00:00Z",
		ReportMarkdown: "## Executive Summary\n- **Growth** in Asia [1]\n\nSee [the release](https://example.com/a).\n\n## Ausblick\nUmsatz wächst.",
		ReportUsedSources: []artifact.Source{
			{URL: "https://example.com/a", Title: "Full year results"},
		},
	}
	if err := writeReportPDF(a, out); err != nil {
		t.Fatalf("writeReportPDF: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "%PDF") {
		t.Fatalf("not a PDF: %q", b[:8])
	}
}
