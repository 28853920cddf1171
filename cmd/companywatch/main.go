package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/companywatch/internal/app"
)

type cliOptions struct {
	configPath string
	version    bool
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("dotenv")
	}

	cfg, opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Error().Err(err).Msg("invalid arguments")
		os.Exit(2)
	}
	if opts.version {
		fmt.Println(app.VersionString())
		return
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = run(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	os.Exit(exitCode(err))
}

// exitCode maps run errors to the process status. Only configuration
// failures are expected to end a run early.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrConfig):
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

// parseFlags builds the run configuration. Flag defaults come from the
// environment, then built-in defaults; a -config file fills the fields that
// are still at their default afterwards.
func parseFlags(args []string, stderr io.Writer) (app.Config, cliOptions, error) {
	def := app.Defaults()
	var (
		cfg         app.Config
		opts        cliOptions
		discoverers string
		socialFeeds string
		promptFile  string
	)
	fs := flag.NewFlagSet("companywatch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.Company, "company", app.EnvOr("COMPANY", def.Company), "Company name")
	fs.StringVar(&discoverers, "discoverers", app.EnvOr("DISCOVERERS", strings.Join(def.Discoverers, ",")), "Comma-separated discoverers: newsroom,news,social,snapshot")
	fs.StringVar(&cfg.NewsIndexURL, "news.index", app.EnvOr("NEWS_INDEX", def.NewsIndexURL), "Newsroom index page")
	fs.StringVar(&cfg.NewsPathSegment, "news.segment", app.EnvOr("NEWS_PATH_SEGMENT", def.NewsPathSegment), "Path fragment identifying newsroom article links")
	fs.StringVar(&cfg.NewsLocales, "news.locales", app.EnvOr("NEWS_LOCALES", def.NewsLocales), "Comma-separated lang-REGION pairs for feed searches")
	fs.StringVar(&cfg.NewsFeedBase, "news.feed", app.EnvOr("NEWS_FEED_BASE", def.NewsFeedBase), "Search feed endpoint")
	fs.StringVar(&socialFeeds, "social.feeds", app.EnvOr("SOCIAL_RSS_URLS", os.Getenv("LINKEDIN_RSS_URLS")), "Comma-separated social RSS/Atom feeds")
	fs.BoolVar(&cfg.IncludeSocialSearch, "social.search", app.EnvBoolOr("INCLUDE_SOCIAL_SEARCH", def.IncludeSocialSearch), "Add a site-restricted search for social posts")
	fs.StringVar(&cfg.SocialDomain, "social.domain", app.EnvOr("SOCIAL_DOMAIN", def.SocialDomain), "Domain of the social network for the site search")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", os.Getenv("SNAPSHOT_FILE"), "JSON file of candidates for the snapshot discoverer")
	fs.IntVar(&cfg.MaxPerSource, "max.perSource", app.EnvIntOr("MAX_PER_SOURCE", def.MaxPerSource), "Maximum candidates per discoverer call")

	fs.IntVar(&cfg.LookbackDays, "lookback.days", app.EnvIntOr("LOOKBACK_DAYS", def.LookbackDays), "Recency window in days")
	fs.IntVar(&cfg.MinTextCharsArticle, "min.articleChars", app.EnvIntOr("MIN_TEXT_CHARS_ARTICLE", def.MinTextCharsArticle), "Minimum text length for articles")
	fs.IntVar(&cfg.MinTextCharsSocial, "min.socialChars", app.EnvIntOr("MIN_TEXT_CHARS_SOCIAL", app.EnvIntOr("MIN_TEXT_CHARS_LINKEDIN", def.MinTextCharsSocial)), "Minimum text length for social posts")
	fs.IntVar(&cfg.TopTexts, "top.texts", app.EnvIntOr("TOP_TEXTS", def.TopTexts), "Documents handed to signal extraction")
	fs.IntVar(&cfg.SignalLimit, "signal.limit", app.EnvIntOr("SIGNAL_LIMIT", def.SignalLimit), "Maximum number of signals")

	fs.StringVar(&cfg.LLMBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	fs.StringVar(&cfg.LLMModel, "llm.model", app.EnvOr("LLM_MODEL", app.EnvOr("OPENAI_MODEL", def.LLMModel)), "Model name")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", app.EnvOr("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")), "API key for the OpenAI-compatible server")
	fs.DurationVar(&cfg.LLMTimeout, "llm.timeout", app.EnvDurationOr("LLM_TIMEOUT", def.LLMTimeout), "Timeout per model call")

	fs.BoolVar(&cfg.ReportEnable, "report", app.EnvBoolOr("REPORT_ENABLE", def.ReportEnable), "Generate the narrative report")
	fs.IntVar(&cfg.ReportMaxTexts, "report.maxTexts", app.EnvIntOr("REPORT_MAX_TEXTS", def.ReportMaxTexts), "Documents used for the report")
	fs.IntVar(&cfg.ReportMinCitations, "report.minCitations", app.EnvIntOr("REPORT_MIN_CITATIONS", def.ReportMinCitations), "Distinct sources the report should cite")
	fs.BoolVar(&cfg.ReportAllSources, "report.allSources", app.EnvBoolOr("REPORT_ALL_SOURCES", def.ReportAllSources), "Let the report cite every discovered source")
	fs.StringVar(&cfg.LanguageHint, "lang", os.Getenv("LANGUAGE"), "Report language, e.g. 'German'")
	fs.StringVar(&cfg.ReportSystemPrompt, "report.systemPrompt", os.Getenv("REPORT_SYSTEM_PROMPT"), "Override the report system prompt (inline)")
	fs.StringVar(&promptFile, "report.systemPromptFile", os.Getenv("REPORT_SYSTEM_PROMPT_FILE"), "File containing the report system prompt")

	fs.StringVar(&cfg.OutputPath, "output", app.EnvOr("OUTPUT", def.OutputPath), "Artifact path")
	fs.StringVar(&cfg.OutputPDFPath, "output.pdf", os.Getenv("OUTPUT_PDF"), "Optional PDF rendering of the report")
	fs.StringVar(&cfg.GCSBucket, "gcs.bucket", os.Getenv("GCS_BUCKET"), "Optional bucket mirroring the artifact")
	fs.StringVar(&cfg.GCSObject, "gcs.object", app.EnvOr("GCS_OBJECT", def.GCSObject), "Object name of the mirrored artifact")

	fs.DurationVar(&cfg.FetchTimeout, "fetch.timeout", app.EnvDurationOr("FETCH_TIMEOUT", def.FetchTimeout), "Timeout per page or feed request")
	fs.IntVar(&cfg.FetchConcurrency, "fetch.concurrency", app.EnvIntOr("FETCH_CONCURRENCY", def.FetchConcurrency), "Parallel page requests")
	fs.StringVar(&cfg.UserAgent, "ua", app.EnvOr("USER_AGENT", def.UserAgent), "User-Agent header")

	fs.StringVar(&cfg.CacheDir, "cache.dir", os.Getenv("CACHE_DIR"), "Cache directory; empty disables caching")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", app.EnvDurationOr("CACHE_MAX_AGE", 0), "Purge cache entries older than this; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", app.EnvBoolOr("CACHE_CLEAR", false), "Clear the cache directory before the run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", app.EnvBoolOr("CACHE_STRICT_PERMS", false), "Restrict cache permissions (0700 dirs, 0600 files)")

	fs.StringVar(&cfg.PushgatewayURL, "pushgateway", os.Getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway URL for run metrics")
	fs.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "YAML or JSON config file")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, opts, err
	}

	cfg.Discoverers = splitComma(discoverers)
	cfg.SocialFeedURLs = splitComma(socialFeeds)
	if strings.TrimSpace(promptFile) != "" {
		b, err := os.ReadFile(promptFile)
		if err != nil {
			return cfg, opts, fmt.Errorf("%w: read report system prompt: %v", app.ErrConfig, err)
		}
		cfg.ReportSystemPrompt = string(b)
	}
	if opts.configPath != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return cfg, opts, fmt.Errorf("%w: %v", app.ErrConfig, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	return cfg, opts, nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
