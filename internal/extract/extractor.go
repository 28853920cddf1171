package extract

import "time"

// Page is everything the pipeline needs from one fetched page.
type Page struct {
	Title       string
	Text        string
	PublishedAt *time.Time
}

// Extractor converts raw page bytes into a Page. Implementations must be
// deterministic and never fail; unknown fields stay empty.
type Extractor interface {
	Extract(raw []byte) Page
}

// HeuristicExtractor combines Text, Title and PublishedAt.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(raw []byte) Page {
	return Page{Title: Title(raw), Text: Text(raw), PublishedAt: PublishedAt(raw)}
}
