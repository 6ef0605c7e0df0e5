// Package metrics exposes Prometheus collectors for the staff crawler.
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
	seedsTotal                 *prometheus.CounterVec
	recordsTotal               prometheus.Counter
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	tablesTotal                *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	checkpointPosition         prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		seedsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffcrawler_seeds_total",
				Help: "Seeds processed, labeled by outcome and the stage they ended in.",
			},
			[]string{"outcome", "stage"},
		)

		recordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "staffcrawler_records_total",
				Help: "Staff records produced across all seeds.",
			},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffcrawler_fetches_total",
				Help: "Page fetches, labeled by site, mode (static or rendered) and status.",
			},
			[]string{"site", "mode", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffcrawler_fetch_bytes_total",
				Help: "Bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		tablesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffcrawler_tables_total",
				Help: "Raw tables extracted, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "staffcrawler_active_workers",
				Help: "Number of workers currently processing a seed.",
			},
		)

		checkpointPosition = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "staffcrawler_checkpoint_position",
				Help: "Position of the next unprocessed seed.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staffcrawler_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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
	Init()
	return promhttp.Handler()
}

// ObserveSeed counts a finished seed. stage is the failing stage, or DONE.
func ObserveSeed(outcome, stage string, records int) {
	Init()
	seedsTotal.WithLabelValues(outcome, stage).Inc()
	if records > 0 {
		recordsTotal.Add(float64(records))
	}
}

// ObserveFetch counts one static or rendered fetch.
func ObserveFetch(site, mode, status string, bytesFetched int) {
	Init()
	sanitized := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitized, mode, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveTables counts tables extracted with the given strategy.
func ObserveTables(strategy string, n int) {
	Init()
	if n > 0 {
		tablesTotal.WithLabelValues(strategy).Add(float64(n))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// SetCheckpoint records the next unprocessed position.
func SetCheckpoint(position int) {
	Init()
	checkpointPosition.Set(float64(position))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
