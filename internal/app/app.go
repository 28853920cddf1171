package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/companywatch/internal/aggregate"
	"github.com/hyperifyio/companywatch/internal/artifact"
	"github.com/hyperifyio/companywatch/internal/cache"
	"github.com/hyperifyio/companywatch/internal/discover"
	"github.com/hyperifyio/companywatch/internal/extract"
	"github.com/hyperifyio/companywatch/internal/fetch"
	"github.com/hyperifyio/companywatch/internal/llm"
	selecter "github.com/hyperifyio/companywatch/internal/select"
	"github.com/hyperifyio/companywatch/internal/signals"
	"github.com/hyperifyio/companywatch/internal/source"
	"github.com/hyperifyio/companywatch/internal/synth"
)

// App runs one pipeline pass: discovery, normalization, selection, signal
// extraction, report synthesis and the artifact write.
type App struct {
	cfg Config

	fetcher     *fetch.Client
	extractor   extract.Extractor
	discoverers []discover.Discoverer

	ai       llm.Client
	backend  llm.Backend
	llmCache *cache.LLMCache

	writer *artifact.Writer
	sink   artifact.Sink
	closer func() error

	now func() time.Time
}

// New validates cfg and prepares the run. Configuration failures, including
// an output directory that cannot be written, are reported as ErrConfig
// before any network access.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	w := &artifact.Writer{Path: cfg.OutputPath}
	if err := w.EnsureDir(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	a := &App{
		cfg:       cfg,
		writer:    w,
		extractor: extract.HeuristicExtractor{},
		now:       time.Now,
	}

	var httpCache *cache.HTTPCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		httpDir := filepath.Join(cfg.CacheDir, "http")
		llmDir := filepath.Join(cfg.CacheDir, "llm")
		if cfg.CacheMaxAge > 0 {
			nh, _ := cache.PurgeHTTPCacheByAge(httpDir, cfg.CacheMaxAge)
			nl, _ := cache.PurgeLLMCacheByAge(llmDir, cfg.CacheMaxAge)
			log.Debug().Int("http", nh).Int("llm", nl).Dur("max_age", cfg.CacheMaxAge).Msg("cache purged")
		}
		httpCache = &cache.HTTPCache{Dir: httpDir, StrictPerms: cfg.CacheStrictPerms}
		a.llmCache = &cache.LLMCache{Dir: llmDir, StrictPerms: cfg.CacheStrictPerms}
	}

	a.fetcher = &fetch.Client{
		HTTPClient:        newHTTPClient(0, cfg.FetchConcurrency),
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.FetchTimeout,
		Cache:             httpCache,
		MaxConcurrent:     cfg.FetchConcurrency,
	}
	a.discoverers = BuildDiscoverers(cfg, a.fetcher)

	a.backend = llm.Backend{BaseURL: cfg.LLMBaseURL, Model: cfg.LLMModel, APIKey: cfg.LLMAPIKey}
	if a.backend.Configured() {
		a.ai = llm.NewOpenAI(a.backend, newHTTPClient(cfg.LLMTimeout, 1))
		a.preflightModels(ctx)
	} else {
		log.Info().Msg("extraction backend not configured; signals use the heuristic fallback and no report is written")
	}

	if cfg.GCSBucket != "" {
		sink, err := artifact.NewGCSSink(ctx, cfg.GCSBucket, cfg.GCSObject)
		if err != nil {
			log.Warn().Err(err).Str("bucket", cfg.GCSBucket).Msg("artifact mirror disabled")
		} else {
			a.sink = sink
			a.closer = sink.Close
		}
	}
	return a, nil
}

// preflightModels lists the backend's models. It is informational only.
func (a *App) preflightModels(ctx context.Context) {
	ml, ok := a.ai.(llm.ModelLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := ml.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	log.Debug().Int("count", len(models.Models)).Msg("LLM models available")
}

func (a *App) Close() {
	if a.closer != nil {
		if err := a.closer(); err != nil {
			log.Debug().Err(err).Msg("close")
		}
	}
}

// Run executes the pipeline once. The only errors returned are those that
// prevent the artifact from being written.
func (a *App) Run(ctx context.Context) error {
	start := a.now()
	now := start.UTC()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)
	m := newRunMetrics()

	refs, outcomes := discover.Run(ctx, a.discoverers)
	if err := interrupted(ctx, logger, "discover"); err != nil {
		return err
	}
	for _, o := range outcomes {
		if !o.OK() {
			m.discoverErrors.WithLabelValues(o.Name).Inc()
		}
	}
	refs = aggregate.Dedupe(refs)
	m.candidates.Set(float64(len(refs)))
	logger.Info().Int("count", len(refs)).Int("discoverers", len(outcomes)).Msg("candidates discovered")

	docs, failures := a.normalize(ctx, logger, refs, m)
	if err := interrupted(ctx, logger, "fetch"); err != nil {
		return err
	}

	selected := selecter.Select(docs, now, selecter.Options{
		TopN:      a.cfg.TopTexts,
		Lookback:  a.cfg.Lookback(),
		MinLength: source.MinLength{Article: a.cfg.MinTextCharsArticle, Social: a.cfg.MinTextCharsSocial},
	})
	m.selected.Set(float64(len(selected)))
	logger.Info().Int("documents", len(docs)).Int("selected", len(selected)).Msg("documents selected")

	ex := &signals.Extractor{
		Client:  a.ai,
		Backend: a.backend,
		Company: a.cfg.Company,
		Limit:   a.cfg.SignalLimit,
		Timeout: a.cfg.LLMTimeout,
		Cache:   a.llmCache,
	}
	sig := ex.Extract(ctx, selected)
	m.signals.WithLabelValues(string(sig.Stage)).Set(float64(len(sig.Signals)))
	m.llmFailures.Add(float64(sig.Failures))
	logger.Info().Str("stage", string(sig.Stage)).Int("count", len(sig.Signals)).Int("batch", sig.BatchCount).Int("backfill", sig.BackfillCount).Msg("signals extracted")

	if err := interrupted(ctx, logger, "signals"); err != nil {
		return err
	}

	report := a.report(ctx, logger, selected, sig.Signals, refs)
	if err := interrupted(ctx, logger, "report"); err != nil {
		return err
	}
	if report.Markdown != "" {
		m.reportGenerated.Set(1)
	}

	art := artifact.Artifact{
		Company:           a.cfg.Company,
		GeneratedAt:       artifact.FormatTime(now),
		Signals:           sig.Signals,
		Sources:           artifact.SourcesFrom(refs),
		ReportMarkdown:    report.Markdown,
		ReportUsedSources: artifact.SourcesFrom(report.Sources),
		Meta: artifact.Meta{
			LookbackDays:   a.cfg.LookbackDays,
			TextsSelected:  len(selected),
			ReportMaxTexts: a.cfg.ReportMaxTexts,
		},
	}
	data, err := a.writer.Write(ctx, art)
	if err != nil {
		if errors.Is(err, artifact.ErrInvalid) || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	logger.Info().Str("path", a.cfg.OutputPath).Int("bytes", len(data)).Msg("artifact written")

	a.writeManifest(logger, manifestMeta{
		RunID:         runID,
		Version:       BuildVersion,
		Company:       a.cfg.Company,
		Model:         a.backend.Model,
		LLMBaseURL:    a.backend.BaseURL,
		Candidates:    len(refs),
		Fetched:       countWithText(docs),
		FetchFailures: failures,
		Selected:      len(selected),
		Signals:       len(sig.Signals),
		SignalStage:   string(sig.Stage),
		Report:        report.Markdown != "",
		HTTPCache:     a.fetcher.Cache != nil,
		LLMCache:      a.llmCache != nil,
		GeneratedAt:   now,
	}, selected)

	if a.cfg.OutputPDFPath != "" {
		if err := a.writePDF(art); err != nil {
			logger.Warn().Err(err).Str("path", a.cfg.OutputPDFPath).Msg("PDF rendering failed")
		}
	}
	if a.sink != nil {
		if err := a.sink.Put(ctx, data); err != nil {
			logger.Warn().Err(err).Msg("artifact mirror failed")
		} else {
			logger.Info().Str("bucket", a.cfg.GCSBucket).Str("object", a.cfg.GCSObject).Msg("artifact mirrored")
		}
	}

	m.finish(start, a.now())
	if err := m.push(ctx, a.cfg.PushgatewayURL); err != nil {
		logger.Warn().Err(err).Msg("metrics push failed")
	}

	logger.Info().
		Int("signals", len(art.Signals)).
		Int("sources", len(art.Sources)).
		Int("social_sources", countSocial(refs)).
		Int("texts_selected", len(selected)).
		Bool("report", art.ReportMarkdown != "").
		Msg("run complete")
	return nil
}

// interrupted reports a cancelled run. The error is returned unwrapped so an
// interrupted run is never mistaken for a configuration failure.
func interrupted(ctx context.Context, logger zerolog.Logger, stage string) error {
	if err := ctx.Err(); err != nil {
		logger.Warn().Str("stage", stage).Err(err).Msg("run interrupted; artifact left unchanged")
		return err
	}
	return nil
}

// normalize turns every candidate into a Document, keeping discovery order.
// Social entries with pre-rendered feed text skip the network; everything
// else is fetched by a bounded worker pool. Failed fetches yield an empty
// text so the length filter drops them; their number is returned.
func (a *App) normalize(ctx context.Context, logger zerolog.Logger, refs []source.Ref, m *runMetrics) ([]source.Document, int) {
	docs := make([]source.Document, len(refs))
	failed := make([]bool, len(refs))
	workers := a.cfg.FetchConcurrency
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			docs[i], failed[i] = a.document(ctx, logger, i, ref, m)
			return nil
		})
	}
	_ = g.Wait()
	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return docs, n
}

func (a *App) document(ctx context.Context, logger zerolog.Logger, i int, ref source.Ref, m *runMetrics) (source.Document, bool) {
	doc := source.Document{Ref: ref, Index: i, PublishedAt: ref.PublishedAt}
	if ref.Snippet != "" {
		doc.Text = extract.Clean(ref.Snippet)
		m.fetches.WithLabelValues("prefetched").Inc()
		return doc, false
	}
	res := a.fetcher.Fetch(ctx, ref.URL)
	if !res.OK() {
		m.fetches.WithLabelValues("failed").Inc()
		logger.Warn().Str("stage", "fetch").Str("url", ref.URL).Str("origin", ref.Origin).Int("status", res.Err.StatusCode).Bool("timeout", res.Err.Timeout()).Msg(res.Reason())
		return doc, true
	}
	m.fetches.WithLabelValues("ok").Inc()
	page := a.extractor.Extract(res.Body)
	doc.Text = page.Text
	if doc.PublishedAt == nil {
		doc.PublishedAt = page.PublishedAt
	}
	if doc.Title == "" {
		doc.Title = page.Title
	}
	return doc, false
}

// report never fails the run: any problem leaves the report empty.
func (a *App) report(ctx context.Context, logger zerolog.Logger, docs []source.Document, sigs []signals.Signal, refs []source.Ref) synth.Report {
	if !a.cfg.ReportEnable {
		return synth.Report{}
	}
	s := &synth.Synthesizer{
		Client:          a.ai,
		Backend:         a.backend,
		Cache:           a.llmCache,
		MaxTexts:        a.cfg.ReportMaxTexts,
		MinCitations:    a.cfg.ReportMinCitations,
		AllowAllSources: a.cfg.ReportAllSources,
		Language:        a.cfg.LanguageHint,
		Timeout:         a.cfg.LLMTimeout,
		SystemPrompt:    a.cfg.ReportSystemPrompt,
	}
	rep, err := s.Synthesize(ctx, synth.Input{Company: a.cfg.Company, Docs: docs, Signals: sigs, Sources: refs})
	switch {
	case err == nil:
		logger.Info().Str("stage", "report").Int("sources", len(rep.Sources)).Ints("cited", rep.Citations.InRange).Msg("report generated")
	case errors.Is(err, synth.ErrNotConfigured):
		logger.Debug().Str("stage", "report").Msg("report skipped: backend not configured")
	default:
		logger.Warn().Str("stage", "report").Err(err).Msg("report skipped")
	}
	return rep
}

func (a *App) writeManifest(logger zerolog.Logger, meta manifestMeta, selected []source.Document) {
	b, err := marshalManifestJSON(meta, buildManifestEntries(selected))
	if err != nil {
		logger.Warn().Err(err).Msg("manifest encode failed")
		return
	}
	path := deriveManifestSidecarPath(a.cfg.OutputPath)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("manifest write failed")
	}
}

func (a *App) writePDF(art artifact.Artifact) error {
	if err := os.MkdirAll(filepath.Dir(a.cfg.OutputPDFPath), 0o755); err != nil {
		return err
	}
	return writeReportPDF(art, a.cfg.OutputPDFPath)
}

func countWithText(docs []source.Document) int {
	n := 0
	for _, d := range docs {
		if d.Text != "" {
			n++
		}
	}
	return n
}

func countSocial(refs []source.Ref) int {
	n := 0
	for _, r := range refs {
		if source.OriginClass(r.Origin) == source.ClassSocial {
			n++
		}
	}
	return n
}
