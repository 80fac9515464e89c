package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftpipe_cache_requests_total",
			Help: "Total number of cache lookups",
		},
		[]string{"result"},
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftpipe_cache_writes_total",
			Help: "Total number of cache entries written",
		},
		[]string{"status"},
	)

	CacheEntriesClearedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftpipe_cache_entries_cleared_total",
			Help: "Total number of cache entries deleted by clear operations",
		},
	)

	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftpipe_aggregation_duration_seconds",
			Help:    "Duration of aggregation runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 0.01s to ~82s
		},
		[]string{"status"},
	)

	PartialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftpipe_partials_total",
			Help: "Total number of partial results materialized",
		},
		[]string{"view", "kind"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftpipe_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "status"},
	)
)
