package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestionMetrics records pipeline run outcomes and per-stage throughput.
type IngestionMetrics struct {
	stageDuration  *prometheus.HistogramVec
	runSuccess     *prometheus.CounterVec
	runFailure     *prometheus.CounterVec
	moviesUpserted *prometheus.CounterVec
	offersUpserted *prometheus.CounterVec
	enriched       *prometheus.CounterVec
	enrichFailed   prometheus.Counter
	providerErrors *prometheus.CounterVec
}

// NewIngestionMetrics registers the pipeline metrics on the provided registerer.
func NewIngestionMetrics(reg prometheus.Registerer) *IngestionMetrics {
	if reg == nil {
		return &IngestionMetrics{}
	}
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestion_stage_duration_seconds",
		Help:    "Duration of pipeline stages in seconds.",
		Buckets: []float64{.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"stage"})
	runSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_run_success",
		Help: "Successful pipeline runs.",
	}, []string{"trigger"})
	runFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_run_failure",
		Help: "Failed pipeline runs.",
	}, []string{"trigger"})
	moviesUpserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_movies_upserted_total",
		Help: "Movies created or refreshed during catalog sync.",
	}, []string{"platform"})
	offersUpserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_offers_upserted_total",
		Help: "Availability offers created or refreshed during catalog sync.",
	}, []string{"platform"})
	enriched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_movies_enriched_total",
		Help: "Movies enriched with metadata, labelled by how the match was resolved.",
	}, []string{"resolution"})
	enrichFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_enrichment_failures_total",
		Help: "Movies whose enrichment attempt failed.",
	})
	providerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_provider_errors_total",
		Help: "Upstream provider request failures after retries.",
	}, []string{"provider"})
	reg.MustRegister(stageDuration, runSuccess, runFailure, moviesUpserted, offersUpserted, enriched, enrichFailed, providerErrors)
	return &IngestionMetrics{
		stageDuration:  stageDuration,
		runSuccess:     runSuccess,
		runFailure:     runFailure,
		moviesUpserted: moviesUpserted,
		offersUpserted: offersUpserted,
		enriched:       enriched,
		enrichFailed:   enrichFailed,
		providerErrors: providerErrors,
	}
}

// ObserveStage records the duration for the named stage.
func (m *IngestionMetrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncRunSuccess increments the run success counter for the trigger source.
func (m *IngestionMetrics) IncRunSuccess(trigger string) {
	if m == nil || m.runSuccess == nil {
		return
	}
	m.runSuccess.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// IncRunFailure increments the run failure counter for the trigger source.
func (m *IngestionMetrics) IncRunFailure(trigger string) {
	if m == nil || m.runFailure == nil {
		return
	}
	m.runFailure.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// AddMoviesUpserted adds to the per-platform movie counter.
func (m *IngestionMetrics) AddMoviesUpserted(platform string, n int) {
	if m == nil || m.moviesUpserted == nil || n <= 0 {
		return
	}
	m.moviesUpserted.WithLabelValues(normalizeLabel(platform)).Add(float64(n))
}

// AddOffersUpserted adds to the per-platform offer counter.
func (m *IngestionMetrics) AddOffersUpserted(platform string, n int) {
	if m == nil || m.offersUpserted == nil || n <= 0 {
		return
	}
	m.offersUpserted.WithLabelValues(normalizeLabel(platform)).Add(float64(n))
}

// IncEnriched counts one enriched movie by resolution path (id, imdb, search).
func (m *IngestionMetrics) IncEnriched(resolution string) {
	if m == nil || m.enriched == nil {
		return
	}
	m.enriched.WithLabelValues(normalizeLabel(resolution)).Inc()
}

// IncEnrichmentFailure counts one failed enrichment attempt.
func (m *IngestionMetrics) IncEnrichmentFailure() {
	if m == nil || m.enrichFailed == nil {
		return
	}
	m.enrichFailed.Inc()
}

// IncProviderError counts one exhausted upstream request for the provider.
func (m *IngestionMetrics) IncProviderError(provider string) {
	if m == nil || m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(normalizeLabel(provider)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
