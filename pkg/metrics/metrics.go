package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metrics, registered on the default registry through promauto.

var (
	// HttpRequestsTotal counts API requests served, labeled by method, route and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures API response time.
	// A single search may walk dozens of concepts, so the buckets reach a minute.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "termgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UpstreamRequestsTotal counts every attempt sent to the terminology service.
	// Status is the HTTP code, or "error" for transport failures.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termgraph_upstream_requests_total",
			Help: "Total number of requests sent to the terminology service",
		},
		[]string{"status"},
	)

	// UpstreamRequestDuration measures single upstream attempts.
	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "termgraph_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UpstreamRetriesTotal counts attempts repeated after a transient server error.
	UpstreamRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "termgraph_upstream_retries_total",
			Help: "Total number of retried upstream requests",
		},
	)

	// RateLimitWaitSeconds accumulates the time spent waiting for a rate limiter slot.
	RateLimitWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "termgraph_ratelimit_wait_seconds_total",
			Help: "Total time spent blocked on the upstream rate limiter",
		},
	)

	// CacheLookupsTotal counts response cache lookups by result (hit, miss, error).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termgraph_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"result"},
	)

	// SearchesTotal counts policy searches by kind (definitions, defined_concepts) and outcome.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "termgraph_searches_total",
			Help: "Total number of definition searches",
		},
		[]string{"kind", "outcome"},
	)

	// SearchNodesVisited observes how many concepts each definition search visited.
	SearchNodesVisited = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "termgraph_search_nodes_visited",
			Help:    "Number of concepts visited per definition search",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250, 500},
		},
	)
)
