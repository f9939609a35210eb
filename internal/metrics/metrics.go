// Package metrics exposes Prometheus collectors for the path crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	extractionsTotal           *prometheus.CounterVec
	extractionRetriesTotal     prometheus.Counter
	jobsTotal                  *prometheus.CounterVec
	persistFailuresTotal       prometheus.Counter
	pathSteps                  *prometheus.HistogramVec
	activeWalkers              prometheus.Gauge
	visitedTitles              prometheus.Gauge
	storageSizeGB              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times. Observe helpers are no-ops
// until Init has run.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikipath_fetches_total",
				Help: "Total number of article fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikipath_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikipath_extractions_total",
				Help: "Total number of link extractions, labeled by the cascade stage that produced the link.",
			},
			[]string{"stage"},
		)

		extractionRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wikipath_extraction_retries_total",
				Help: "Total number of extraction attempts that were retried.",
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikipath_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		persistFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wikipath_persist_failures_total",
				Help: "Total number of paths the persistence sink rejected.",
			},
		)

		pathSteps = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wikipath_path_steps",
				Help:    "Histogram of path lengths in steps, labeled by outcome.",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250, 1000},
			},
			[]string{"outcome"},
		)

		activeWalkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikipath_active_walkers",
				Help: "Number of walks currently in flight.",
			},
		)

		visitedTitles = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikipath_visited_titles",
				Help: "Number of titles in the global visited set.",
			},
		)

		storageSizeGB = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikipath_storage_size_gb",
				Help: "Last observed storage size in gigabytes.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wikipath_rate_limit_delays_seconds",
				Help:    "Histogram of request limiter wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5},
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one article fetch.
func ObserveFetch(site string, status string, bytesFetched int) {
	if fetchesTotal == nil {
		return
	}
	sanitizedSite := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveExtraction records which cascade stage produced a link.
func ObserveExtraction(stage string) {
	if extractionsTotal == nil {
		return
	}
	extractionsTotal.WithLabelValues(stage).Inc()
}

// ObserveExtractionRetry counts a retried extraction attempt.
func ObserveExtractionRetry() {
	if extractionRetriesTotal == nil {
		return
	}
	extractionRetriesTotal.Inc()
}

// ObserveJob records a finished crawl job and its path length.
func ObserveJob(outcome string, steps int) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(outcome).Inc()
	pathSteps.WithLabelValues(outcome).Observe(float64(steps))
}

// ObservePersistFailure counts a rejected store.
func ObservePersistFailure() {
	if persistFailuresTotal == nil {
		return
	}
	persistFailuresTotal.Inc()
}

// IncActiveWalkers increments the active walkers gauge.
func IncActiveWalkers() {
	if activeWalkers == nil {
		return
	}
	activeWalkers.Inc()
}

// DecActiveWalkers decrements the active walkers gauge.
func DecActiveWalkers() {
	if activeWalkers == nil {
		return
	}
	activeWalkers.Dec()
}

// SetVisitedTitles records the size of the global visited set.
func SetVisitedTitles(n int) {
	if visitedTitles == nil {
		return
	}
	visitedTitles.Set(float64(n))
}

// SetStorageSizeGB records the last observed storage size.
func SetStorageSizeGB(size float64) {
	if storageSizeGB == nil {
		return
	}
	storageSizeGB.Set(size)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a limiter wait.
func ObserveRateLimitDelay(duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}
