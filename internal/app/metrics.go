package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsJob = "companywatch"

// runMetrics holds the per-run collectors. A batch job has no scrape
// endpoint, so the registry is pushed to a Pushgateway once at the end.
type runMetrics struct {
	reg *prometheus.Registry

	candidates      prometheus.Gauge
	discoverErrors  *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	selected        prometheus.Gauge
	signals         *prometheus.GaugeVec
	llmFailures     prometheus.Counter
	reportGenerated prometheus.Gauge
	duration        prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

func newRunMetrics() *runMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &runMetrics{
		reg: reg,
		candidates: f.NewGauge(prometheus.GaugeOpts{
			Name: "companywatch_candidates",
			Help: "Candidates left after deduplication.",
		}),
		discoverErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "companywatch_discover_errors_total",
			Help: "Discoverers that failed, by name.",
		}, []string{"discoverer"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "companywatch_fetches_total",
			Help: "Document retrievals by result.",
		}, []string{"result"}),
		selected: f.NewGauge(prometheus.GaugeOpts{
			Name: "companywatch_documents_selected",
			Help: "Documents handed to signal extraction.",
		}),
		signals: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "companywatch_signals",
			Help: "Signals in the artifact, by producing stage.",
		}, []string{"stage"}),
		llmFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "companywatch_llm_failures_total",
			Help: "Extraction backend calls that failed or returned nothing usable.",
		}),
		reportGenerated: f.NewGauge(prometheus.GaugeOpts{
			Name: "companywatch_report_generated",
			Help: "1 when the artifact carries a report.",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "companywatch_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "companywatch_last_success_timestamp_seconds",
			Help: "Unix time the last artifact was written.",
		}),
	}
}

func (m *runMetrics) finish(start, end time.Time) {
	m.duration.Set(end.Sub(start).Seconds())
	m.lastSuccess.Set(float64(end.Unix()))
}

// push sends the registry to the gateway. An empty url is a no-op.
func (m *runMetrics) push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, metricsJob).Gatherer(m.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
