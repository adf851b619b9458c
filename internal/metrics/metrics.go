package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry metrics
	PairCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amm_pair_count",
		Help: "Total number of pairs created by the registry",
	})

	RegistryPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "amm_registry_paused",
		Help: "1 while pair creation is paused",
	})

	// Pair events
	PairEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amm_pair_events_total",
			Help: "Total number of committed pair events",
		},
		[]string{"kind"},
	)

	PairReserve = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "amm_pair_reserve",
			Help: "Last synced reserve of a pair, lossy above 2^53",
		},
		[]string{"pair", "side"},
	)

	// Entry point metrics
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amm_operations_total",
			Help: "Total number of router operations",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amm_operation_duration_seconds",
			Help:    "Router operation duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"operation"},
	)

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amm_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"swap_mode", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amm_quote_duration_seconds",
			Help:    "Quote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"swap_mode"},
	)

	PriceImpact = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amm_price_impact_bps",
			Help:    "Quoted price impact in basis points",
			Buckets: []float64{0, 10, 50, 100, 300, 500, 1000, 5000, 10000},
		},
		[]string{"severity"},
	)

	// Oracle metrics
	Observations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amm_oracle_observations_total",
		Help: "Total number of cumulative price observations recorded",
	})

	// Persistence metrics
	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "amm_persist_duration_seconds",
		Help:    "Duration of one state flush to disk",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amm_persist_failures_total",
		Help: "Total number of failed state flushes",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amm_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
