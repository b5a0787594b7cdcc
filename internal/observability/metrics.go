// Package observability registers the Prometheus metric families for the
// query pipeline and the HTTP surface.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eta_queries_total",
			Help: "ETA queries by outcome.",
		},
		[]string{"outcome"},
	)

	queryDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eta_query_duration_seconds",
			Help:    "End-to-end duration of ETA queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	engineLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routing_engine_latency_seconds",
			Help:    "Latency of routing engine calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"engine"},
	)

	tableSearchSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eta_table_search_seconds",
			Help:    "Duration of zone-pair table binary searches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	zonesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zones_loaded",
			Help: "Number of spatial zones loaded at startup.",
		},
	)

	indexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hash_index_entries",
			Help: "Number of entries in the loaded hash index.",
		},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveQuery(outcome string, durationSeconds float64) {
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(durationSeconds)
}

func ObserveEngineLatency(engine string, durationSeconds float64) {
	engineLatencySeconds.WithLabelValues(engine).Observe(durationSeconds)
}

func ObserveTableSearch(durationSeconds float64) {
	tableSearchSeconds.Observe(durationSeconds)
}

func SetZonesLoaded(n int)  { zonesLoaded.Set(float64(n)) }
func SetIndexEntries(n int) { indexEntries.Set(float64(n)) }
