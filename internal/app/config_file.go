package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Company string `yaml:"company" json:"company"`

	Discovery struct {
		Enabled      []string `yaml:"enabled" json:"enabled"`
		NewsIndex    string   `yaml:"newsIndex" json:"newsIndex"`
		PathSegment  string   `yaml:"pathSegment" json:"pathSegment"`
		Locales      string   `yaml:"locales" json:"locales"`
		FeedBase     string   `yaml:"feedBase" json:"feedBase"`
		SocialFeeds  []string `yaml:"socialFeeds" json:"socialFeeds"`
		SocialSearch *bool    `yaml:"socialSearch" json:"socialSearch"`
		SocialDomain string   `yaml:"socialDomain" json:"socialDomain"`
		Snapshot     string   `yaml:"snapshot" json:"snapshot"`
		MaxPerSource int      `yaml:"maxPerSource" json:"maxPerSource"`
	} `yaml:"discovery" json:"discovery"`

	Select struct {
		LookbackDays    int `yaml:"lookbackDays" json:"lookbackDays"`
		MinArticleChars int `yaml:"minArticleChars" json:"minArticleChars"`
		MinSocialChars  int `yaml:"minSocialChars" json:"minSocialChars"`
		TopTexts        int `yaml:"topTexts" json:"topTexts"`
	} `yaml:"select" json:"select"`

	LLM struct {
		BaseURL     string        `yaml:"base" json:"base"`
		Model       string        `yaml:"model" json:"model"`
		APIKey      string        `yaml:"key" json:"key"`
		Timeout     time.Duration `yaml:"timeout" json:"timeout"`
		SignalLimit int           `yaml:"signalLimit" json:"signalLimit"`
	} `yaml:"llm" json:"llm"`

	Report struct {
		Enable           *bool  `yaml:"enable" json:"enable"`
		MaxTexts         int    `yaml:"maxTexts" json:"maxTexts"`
		MinCitations     int    `yaml:"minCitations" json:"minCitations"`
		AllSources       bool   `yaml:"allSources" json:"allSources"`
		Language         string `yaml:"language" json:"language"`
		SystemPrompt     string `yaml:"systemPrompt" json:"systemPrompt"`
		SystemPromptFile string `yaml:"systemPromptFile" json:"systemPromptFile"`
	} `yaml:"report" json:"report"`

	Output    string `yaml:"output" json:"output"`
	OutputPDF string `yaml:"outputPDF" json:"outputPDF"`

	GCS struct {
		Bucket string `yaml:"bucket" json:"bucket"`
		Object string `yaml:"object" json:"object"`
	} `yaml:"gcs" json:"gcs"`

	Fetch struct {
		Timeout     time.Duration `yaml:"timeout" json:"timeout"`
		Concurrency int           `yaml:"concurrency" json:"concurrency"`
		UserAgent   string        `yaml:"userAgent" json:"userAgent"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Pushgateway string `yaml:"pushgateway" json:"pushgateway"`
	Verbose     bool   `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	if fc.Report.SystemPrompt == "" && fc.Report.SystemPromptFile != "" {
		p, err := os.ReadFile(fc.Report.SystemPromptFile)
		if err != nil {
			return fc, fmt.Errorf("read report system prompt: %w", err)
		}
		fc.Report.SystemPrompt = string(p)
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for fields that still hold
// their built-in default (or are empty). Flags are parsed first, so values
// given explicitly on the command line or through env win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	def := Defaults()

	overlayString(&cfg.Company, def.Company, fc.Company)
	if len(fc.Discovery.Enabled) > 0 && (len(cfg.Discoverers) == 0 || slices.Equal(cfg.Discoverers, def.Discoverers)) {
		cfg.Discoverers = append([]string(nil), fc.Discovery.Enabled...)
	}
	overlayString(&cfg.NewsIndexURL, def.NewsIndexURL, fc.Discovery.NewsIndex)
	overlayString(&cfg.NewsPathSegment, def.NewsPathSegment, fc.Discovery.PathSegment)
	overlayString(&cfg.NewsLocales, def.NewsLocales, fc.Discovery.Locales)
	overlayString(&cfg.NewsFeedBase, def.NewsFeedBase, fc.Discovery.FeedBase)
	if len(cfg.SocialFeedURLs) == 0 && len(fc.Discovery.SocialFeeds) > 0 {
		cfg.SocialFeedURLs = append([]string(nil), fc.Discovery.SocialFeeds...)
	}
	if fc.Discovery.SocialSearch != nil && cfg.IncludeSocialSearch == def.IncludeSocialSearch {
		cfg.IncludeSocialSearch = *fc.Discovery.SocialSearch
	}
	overlayString(&cfg.SocialDomain, def.SocialDomain, fc.Discovery.SocialDomain)
	overlayString(&cfg.SnapshotPath, def.SnapshotPath, fc.Discovery.Snapshot)
	overlayInt(&cfg.MaxPerSource, def.MaxPerSource, fc.Discovery.MaxPerSource)

	overlayInt(&cfg.LookbackDays, def.LookbackDays, fc.Select.LookbackDays)
	overlayInt(&cfg.MinTextCharsArticle, def.MinTextCharsArticle, fc.Select.MinArticleChars)
	overlayInt(&cfg.MinTextCharsSocial, def.MinTextCharsSocial, fc.Select.MinSocialChars)
	overlayInt(&cfg.TopTexts, def.TopTexts, fc.Select.TopTexts)

	overlayString(&cfg.LLMBaseURL, def.LLMBaseURL, fc.LLM.BaseURL)
	overlayString(&cfg.LLMModel, def.LLMModel, fc.LLM.Model)
	overlayString(&cfg.LLMAPIKey, def.LLMAPIKey, fc.LLM.APIKey)
	overlayDuration(&cfg.LLMTimeout, def.LLMTimeout, fc.LLM.Timeout)
	overlayInt(&cfg.SignalLimit, def.SignalLimit, fc.LLM.SignalLimit)

	if fc.Report.Enable != nil && cfg.ReportEnable == def.ReportEnable {
		cfg.ReportEnable = *fc.Report.Enable
	}
	overlayInt(&cfg.ReportMaxTexts, def.ReportMaxTexts, fc.Report.MaxTexts)
	overlayInt(&cfg.ReportMinCitations, def.ReportMinCitations, fc.Report.MinCitations)
	if fc.Report.AllSources {
		cfg.ReportAllSources = true
	}
	overlayString(&cfg.LanguageHint, def.LanguageHint, fc.Report.Language)
	overlayString(&cfg.ReportSystemPrompt, def.ReportSystemPrompt, fc.Report.SystemPrompt)

	overlayString(&cfg.OutputPath, def.OutputPath, fc.Output)
	overlayString(&cfg.OutputPDFPath, def.OutputPDFPath, fc.OutputPDF)
	overlayString(&cfg.GCSBucket, def.GCSBucket, fc.GCS.Bucket)
	overlayString(&cfg.GCSObject, def.GCSObject, fc.GCS.Object)

	overlayDuration(&cfg.FetchTimeout, def.FetchTimeout, fc.Fetch.Timeout)
	overlayInt(&cfg.FetchConcurrency, def.FetchConcurrency, fc.Fetch.Concurrency)
	overlayString(&cfg.UserAgent, def.UserAgent, fc.Fetch.UserAgent)

	overlayString(&cfg.CacheDir, def.CacheDir, fc.Cache.Dir)
	overlayDuration(&cfg.CacheMaxAge, def.CacheMaxAge, fc.Cache.MaxAge)
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	overlayString(&cfg.PushgatewayURL, def.PushgatewayURL, fc.Pushgateway)
	if fc.Verbose {
		cfg.Verbose = true
	}
}

func overlayString(dst *string, def, v string) {
	if v != "" && (*dst == "" || *dst == def) {
		*dst = v
	}
}

func overlayInt(dst *int, def, v int) {
	if v != 0 && (*dst == 0 || *dst == def) {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, def, v time.Duration) {
	if v != 0 && (*dst == 0 || *dst == def) {
		*dst = v
	}
}
