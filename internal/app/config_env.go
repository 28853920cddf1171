package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString(&cfg.Company, "COMPANY")
	setString(&cfg.NewsIndexURL, "NEWS_INDEX")
	setString(&cfg.NewsPathSegment, "NEWS_PATH_SEGMENT")
	setString(&cfg.NewsLocales, "NEWS_LOCALES")
	setString(&cfg.NewsFeedBase, "NEWS_FEED_BASE")
	setString(&cfg.SocialDomain, "SOCIAL_DOMAIN")
	setString(&cfg.SnapshotPath, "SNAPSHOT_FILE")
	if len(cfg.SocialFeedURLs) == 0 {
		cfg.SocialFeedURLs = splitList(EnvOr("SOCIAL_RSS_URLS", os.Getenv("LINKEDIN_RSS_URLS")))
	}
	if len(cfg.Discoverers) == 0 {
		cfg.Discoverers = splitList(os.Getenv("DISCOVERERS"))
	}
	if !cfg.IncludeSocialSearch {
		cfg.IncludeSocialSearch = envBool("INCLUDE_SOCIAL_SEARCH", false)
	}

	setInt(&cfg.LookbackDays, "LOOKBACK_DAYS")
	setInt(&cfg.MaxPerSource, "MAX_PER_SOURCE")
	setInt(&cfg.MinTextCharsArticle, "MIN_TEXT_CHARS_ARTICLE")
	setInt(&cfg.MinTextCharsSocial, "MIN_TEXT_CHARS_SOCIAL")
	setInt(&cfg.MinTextCharsSocial, "MIN_TEXT_CHARS_LINKEDIN")
	setInt(&cfg.TopTexts, "TOP_TEXTS")
	setInt(&cfg.SignalLimit, "SIGNAL_LIMIT")

	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMModel, "OPENAI_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.LLMAPIKey, "OPENAI_API_KEY")
	setDuration(&cfg.LLMTimeout, "LLM_TIMEOUT")

	setInt(&cfg.ReportMaxTexts, "REPORT_MAX_TEXTS")
	setInt(&cfg.ReportMinCitations, "REPORT_MIN_CITATIONS")
	if !cfg.ReportAllSources {
		cfg.ReportAllSources = envBool("REPORT_ALL_SOURCES", false)
	}
	setString(&cfg.LanguageHint, "LANGUAGE")

	setString(&cfg.OutputPath, "OUTPUT")
	setString(&cfg.OutputPDFPath, "OUTPUT_PDF")
	setString(&cfg.GCSBucket, "GCS_BUCKET")
	setString(&cfg.GCSObject, "GCS_OBJECT")

	setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setInt(&cfg.FetchConcurrency, "FETCH_CONCURRENCY")
	setString(&cfg.UserAgent, "USER_AGENT")

	setString(&cfg.CacheDir, "CACHE_DIR")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	if !cfg.CacheClear {
		cfg.CacheClear = envBool("CACHE_CLEAR", false)
	}
	if !cfg.CacheStrictPerms {
		cfg.CacheStrictPerms = envBool("CACHE_STRICT_PERMS", false)
	}

	setString(&cfg.PushgatewayURL, "PUSHGATEWAY_URL")
}

// ConfigFromEnv returns the built-in defaults with every variable present in
// the environment applied on top, which is what companywatch runs with when
// no flags or config file are given.
func ConfigFromEnv() Config {
	var cfg Config
	ApplyEnvToConfig(&cfg)
	def := Defaults()
	if len(cfg.Discoverers) == 0 {
		cfg.Discoverers = def.Discoverers
	}
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&cfg.Company, def.Company},
		{&cfg.NewsIndexURL, def.NewsIndexURL},
		{&cfg.NewsPathSegment, def.NewsPathSegment},
		{&cfg.NewsLocales, def.NewsLocales},
		{&cfg.NewsFeedBase, def.NewsFeedBase},
		{&cfg.SocialDomain, def.SocialDomain},
		{&cfg.LLMModel, def.LLMModel},
		{&cfg.OutputPath, def.OutputPath},
		{&cfg.GCSObject, def.GCSObject},
		{&cfg.UserAgent, def.UserAgent},
	} {
		overlayString(f.dst, "", f.def)
	}
	for _, f := range []struct {
		dst *int
		def int
	}{
		{&cfg.MaxPerSource, def.MaxPerSource},
		{&cfg.LookbackDays, def.LookbackDays},
		{&cfg.MinTextCharsArticle, def.MinTextCharsArticle},
		{&cfg.MinTextCharsSocial, def.MinTextCharsSocial},
		{&cfg.TopTexts, def.TopTexts},
		{&cfg.SignalLimit, def.SignalLimit},
		{&cfg.ReportMaxTexts, def.ReportMaxTexts},
		{&cfg.ReportMinCitations, def.ReportMinCitations},
		{&cfg.FetchConcurrency, def.FetchConcurrency},
	} {
		overlayInt(f.dst, 0, f.def)
	}
	overlayDuration(&cfg.LLMTimeout, 0, def.LLMTimeout)
	overlayDuration(&cfg.FetchTimeout, 0, def.FetchTimeout)
	cfg.IncludeSocialSearch = envBool("INCLUDE_SOCIAL_SEARCH", def.IncludeSocialSearch)
	cfg.ReportEnable = envBool("REPORT_ENABLE", def.ReportEnable)
	return cfg
}

// EnvOr returns the environment value for key, or def when unset or blank.
// Flag defaults in cmd/companywatch are read through it.
func EnvOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvIntOr is EnvOr for integers; unparsable values yield def.
func EnvIntOr(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return n
	}
	return def
}

// EnvDurationOr accepts Go durations ("90s") or bare seconds ("90").
func EnvDurationOr(key string, def time.Duration) time.Duration {
	if d, ok := parseDuration(os.Getenv(key)); ok {
		return d
	}
	return def
}

// EnvBoolOr is EnvOr for booleans.
func EnvBoolOr(key string, def bool) bool { return envBool(key, def) }

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func setString(dst *string, key string) {
	if *dst == "" {
		*dst = strings.TrimSpace(os.Getenv(key))
	}
}

func setInt(dst *int, key string) {
	if *dst != 0 {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = n
	}
}

func setDuration(dst *time.Duration, key string) {
	if *dst != 0 {
		return
	}
	if d, ok := parseDuration(os.Getenv(key)); ok {
		*dst = d
	}
}

func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
