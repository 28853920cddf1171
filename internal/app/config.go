package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfig marks failures that make a run impossible: invalid settings or an
// output location that cannot be written. Nothing is written when it is
// returned.
var ErrConfig = errors.New("configuration error")

// Discoverer names accepted in Config.Discoverers.
const (
	DiscoverNewsroom = "newsroom"
	DiscoverNews     = "news"
	DiscoverSocial   = "social"
	DiscoverSnapshot = "snapshot"
)

// Config holds runtime configuration for one pipeline pass.
type Config struct {
	Company string

	// Discovery
	Discoverers         []string
	NewsIndexURL        string
	NewsPathSegment     string
	NewsLocales         string
	NewsFeedBase        string
	SocialFeedURLs      []string
	IncludeSocialSearch bool
	SocialDomain        string
	SnapshotPath        string
	MaxPerSource        int

	// Selection
	LookbackDays        int
	MinTextCharsArticle int
	MinTextCharsSocial  int
	TopTexts            int

	// Extraction backend
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string
	LLMTimeout  time.Duration
	SignalLimit int

	// Report
	ReportEnable       bool
	ReportMaxTexts     int
	ReportMinCitations int
	ReportAllSources   bool
	LanguageHint       string
	ReportSystemPrompt string

	// Output
	OutputPath    string
	OutputPDFPath string
	GCSBucket     string
	GCSObject     string

	// Fetching
	FetchTimeout     time.Duration
	FetchConcurrency int
	UserAgent        string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	PushgatewayURL string
	Verbose        bool
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Company:             "Pernod Ricard",
		Discoverers:         []string{DiscoverNewsroom, DiscoverNews, DiscoverSocial},
		NewsIndexURL:        "https://www.pernod-ricard.com/en/media",
		NewsPathSegment:     "/media/",
		NewsLocales:         "de-DE,en-US",
		NewsFeedBase:        "https://news.google.com/rss/search",
		IncludeSocialSearch: true,
		SocialDomain:        "linkedin.com",
		MaxPerSource:        8,
		LookbackDays:        7,
		MinTextCharsArticle: 600,
		MinTextCharsSocial:  140,
		TopTexts:            10,
		LLMModel:            "gpt-4o-mini",
		LLMTimeout:          60 * time.Second,
		SignalLimit:         8,
		ReportEnable:        true,
		ReportMaxTexts:      12,
		ReportMinCitations:  6,
		OutputPath:          "data/latest.json",
		GCSObject:           "latest.json",
		FetchTimeout:        30 * time.Second,
		FetchConcurrency:    4,
		UserAgent:           defaultUserAgent(),
	}
}

// Lookback converts LookbackDays to a duration.
func (c Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// ValidateConfig reports settings that cannot produce a run. The returned
// error wraps ErrConfig.
func ValidateConfig(cfg Config) error {
	var problems []string
	if strings.TrimSpace(cfg.Company) == "" {
		problems = append(problems, "company is empty")
	}
	if strings.TrimSpace(cfg.OutputPath) == "" {
		problems = append(problems, "output path is empty")
	}
	ints := []struct {
		name string
		v    int
	}{
		{"lookback days", cfg.LookbackDays},
		{"max per source", cfg.MaxPerSource},
		{"min text chars (article)", cfg.MinTextCharsArticle},
		{"min text chars (social)", cfg.MinTextCharsSocial},
		{"top texts", cfg.TopTexts},
		{"signal limit", cfg.SignalLimit},
		{"report max texts", cfg.ReportMaxTexts},
		{"report min citations", cfg.ReportMinCitations},
		{"fetch concurrency", cfg.FetchConcurrency},
	}
	for _, it := range ints {
		if it.v < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative (got %d)", it.name, it.v))
		}
	}
	for _, name := range cfg.Discoverers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case DiscoverNewsroom, DiscoverNews, DiscoverSocial, DiscoverSnapshot:
		default:
			problems = append(problems, fmt.Sprintf("unknown discoverer %q", name))
		}
	}
	if cfg.GCSBucket != "" && strings.TrimSpace(cfg.GCSObject) == "" {
		problems = append(problems, "gcs object is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
