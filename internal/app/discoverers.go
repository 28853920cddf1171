package app

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/companywatch/internal/discover"
)

// BuildDiscoverers turns cfg.Discoverers into the active discoverer list, in
// the configured order. Entries missing their required setting are skipped
// with a warning.
func BuildDiscoverers(cfg Config, f discover.Fetcher) []discover.Discoverer {
	locales := discover.ParseLocales(cfg.NewsLocales)
	var out []discover.Discoverer
	seen := map[string]bool{}
	for _, raw := range cfg.Discoverers {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case DiscoverNewsroom:
			if cfg.NewsIndexURL == "" {
				log.Warn().Str("discoverer", name).Msg("no newsroom index configured; skipping")
				continue
			}
			out = append(out, &discover.Newsroom{
				Fetcher:     f,
				IndexURL:    cfg.NewsIndexURL,
				PathSegment: cfg.NewsPathSegment,
				Company:     cfg.Company,
				MaxItems:    cfg.MaxPerSource,
			})
		case DiscoverNews:
			out = append(out, &discover.NewsFeed{
				Fetcher:  f,
				Base:     cfg.NewsFeedBase,
				Company:  cfg.Company,
				Locales:  locales,
				Lookback: cfg.Lookback(),
				MaxItems: cfg.MaxPerSource,
			})
		case DiscoverSocial:
			if len(cfg.SocialFeedURLs) == 0 && !cfg.IncludeSocialSearch {
				continue
			}
			out = append(out, &discover.SocialFeed{
				Fetcher:  f,
				FeedURLs: cfg.SocialFeedURLs,
				Search:   cfg.IncludeSocialSearch,
				Base:     cfg.NewsFeedBase,
				Company:  cfg.Company,
				Domain:   cfg.SocialDomain,
				Locales:  locales,
				Lookback: cfg.Lookback(),
				MaxItems: cfg.MaxPerSource,
			})
		case DiscoverSnapshot:
			if cfg.SnapshotPath == "" {
				log.Warn().Str("discoverer", name).Msg("no snapshot file configured; skipping")
				continue
			}
			out = append(out, &discover.Snapshot{Path: cfg.SnapshotPath, MaxItems: cfg.MaxPerSource})
		}
	}
	return out
}
