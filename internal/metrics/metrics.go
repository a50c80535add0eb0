// Package metrics exposes Prometheus collectors for the extractor service.
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
	articlesTotal              *prometheus.CounterVec
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchesInFlight            prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times. Observations made before
// Init are dropped.
func Init() {
	once.Do(func() {
		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_articles_total",
				Help: "Total number of articles extracted, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_fetch_attempts_total",
				Help: "Total number of fetch tier attempts, labeled by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extractor_fetch_duration_seconds",
				Help:    "Histogram of fetch tier latencies, labeled by tier.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tier"},
		)

		fetchesInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "extractor_fetches_in_flight",
				Help: "Number of article fetches currently running.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extractor_rate_limit_delay_seconds",
				Help:    "Histogram of per-host pacing waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
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
	return promhttp.Handler()
}

// ObserveArticles counts articles produced by an extraction strategy.
func ObserveArticles(strategy string, n int) {
	if articlesTotal == nil || n <= 0 {
		return
	}
	articlesTotal.WithLabelValues(strategy).Add(float64(n))
}

// ObserveFetchAttempt records one tier attempt and how long it took.
func ObserveFetchAttempt(tier, outcome string, duration time.Duration) {
	if fetchAttemptsTotal == nil {
		return
	}
	fetchAttemptsTotal.WithLabelValues(tier, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(tier).Observe(duration.Seconds())
}

// IncFetchesInFlight increments the in-flight fetch gauge.
func IncFetchesInFlight() {
	if fetchesInFlight != nil {
		fetchesInFlight.Inc()
	}
}

// DecFetchesInFlight decrements the in-flight fetch gauge.
func DecFetchesInFlight() {
	if fetchesInFlight != nil {
		fetchesInFlight.Dec()
	}
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
