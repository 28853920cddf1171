package discover

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/hyperifyio/companywatch/internal/source"
)

// Snapshot loads candidates from a local JSON file for offline runs. The file
// is an array of objects: {"url", "title", "origin", "published_at", "snippet"}.
// A missing origin becomes "snapshot".
type Snapshot struct {
	Path     string
	MaxItems int
}

func (s *Snapshot) Name() string { return source.OriginSnapshot }

func (s *Snapshot) Discover(_ context.Context) ([]source.Ref, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("snapshot path is empty")
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var raw []source.Ref
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make([]source.Ref, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		if r.Origin == "" {
			r.Origin = source.OriginSnapshot
		}
		if r.PublishedAt != nil {
			t := r.PublishedAt.UTC()
			r.PublishedAt = &t
		}
		out = append(out, r)
		if s.MaxItems > 0 && len(out) >= s.MaxItems {
			break
		}
	}
	return out, nil
}
