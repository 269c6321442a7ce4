// Package metrics exposes Prometheus collectors for the sync pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal     *prometheus.CounterVec
	fetchRetriesTotal     prometheus.Counter
	fetchDurationSeconds  prometheus.Histogram
	productsTotal         *prometheus.CounterVec
	embeddingsTotal       *prometheus.CounterVec
	upsertsTotal          *prometheus.CounterVec
	staleDeletedTotal     prometheus.Counter
	runsTotal             *prometheus.CounterVec
	rateLimitWaitsSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_pages_fetched_total",
				Help: "Total pages fetched, labeled by HTTP status code.",
			},
			[]string{"code"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalogsync_fetch_retries_total",
				Help: "Total fetch attempts beyond the first per page.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalogsync_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		productsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_products_total",
				Help: "Total products processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		embeddingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_embeddings_total",
				Help: "Total embedding attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		upsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_upserts_total",
				Help: "Total store upserts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		staleDeletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalogsync_stale_deleted_total",
				Help: "Total stale records pruned during reconciliation.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_runs_total",
				Help: "Total pipeline runs, labeled by terminal state.",
			},
			[]string{"state"},
		)

		rateLimitWaitsSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalogsync_rate_limit_waits_seconds",
				Help:    "Histogram of request pacing wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records the outcome of one page fetch.
func ObserveFetch(code int, duration time.Duration) {
	pagesFetchedTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRetry counts a fetch attempt beyond the first.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveProduct counts one product outcome ("succeeded" or "failed").
func ObserveProduct(outcome string) {
	productsTotal.WithLabelValues(outcome).Inc()
}

// ObserveEmbedding counts one embedding outcome.
func ObserveEmbedding(outcome string) {
	embeddingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpsert counts one store upsert outcome.
func ObserveUpsert(outcome string) {
	upsertsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStaleDeleted adds pruned record counts from reconciliation.
func ObserveStaleDeleted(n int) {
	if n > 0 {
		staleDeletedTotal.Add(float64(n))
	}
}

// ObserveRun counts a finished pipeline run by terminal state.
func ObserveRun(state string) {
	runsTotal.WithLabelValues(state).Inc()
}

// ObserveRateLimitWait records the duration of a pacing wait.
func ObserveRateLimitWait(duration time.Duration) {
	if duration > time.Millisecond {
		rateLimitWaitsSeconds.Observe(duration.Seconds())
	}
}
