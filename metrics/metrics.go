// Package metrics exposes Prometheus collectors for the client's request,
// refresh and cache activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "christland_client"

// Refresh outcomes.
const (
	RefreshSuccess        = "success"
	RefreshRejected       = "rejected"
	RefreshInvalidBody    = "invalid_body"
	RefreshNetworkError   = "network_error"
	RefreshNoRefreshToken = "no_refresh_token"
)

// Query outcomes.
const (
	QuerySuccess   = "success"
	QueryHTTPError = "http_error"
	QueryNonJSON   = "non_json"
	QueryDecode    = "decode_error"
	QueryNetwork   = "network_error"
	QueryTimeout   = "timeout"
	QueryCancelled = "cancelled"
)

// Metrics holds the client's Prometheus collectors.
type Metrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	refreshes     *prometheus.CounterVec
	logouts       prometheus.Counter
	cacheLookups  *prometheus.CounterVec
	cacheClears   prometheus.Counter
	queryOutcomes *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer.
// If registerer is nil, prometheus.DefaultRegisterer is used.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests by method and status code",
			},
			[]string{"method", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency of API requests, including any refresh and retry",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "refresh_total",
				Help:      "Access token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		logouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "forced_logouts_total",
				Help:      "Sessions cleared because the access token could not be refreshed",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "cache_lookups_total",
				Help:      "Query cache lookups by result",
			},
			[]string{"result"},
		),
		cacheClears: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "cache_clears_total",
				Help:      "Number of times the whole query cache was dropped",
			},
		),
		queryOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "runs_total",
				Help:      "Query runs by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}

	registerer.MustRegister(
		m.requests,
		m.latency,
		m.refreshes,
		m.logouts,
		m.cacheLookups,
		m.cacheClears,
		m.queryOutcomes,
	)

	return m
}

// RecordRequest records a completed API request.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLogout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

// RecordCacheLookup records a query cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheClear() {
	if m == nil {
		return
	}
	m.cacheClears.Inc()
}

// RecordQuery records the outcome of one query run against endpoint.
// endpoint is the path without its query string.
func (m *Metrics) RecordQuery(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.queryOutcomes.WithLabelValues(endpoint, outcome).Inc()
}
