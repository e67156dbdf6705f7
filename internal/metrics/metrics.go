package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Session Metrics
	SessionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_sessions_started_total",
			Help: "Total number of playback sessions started",
		},
		[]string{"media_type", "stream_kind"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamgate_sessions_active",
			Help: "Number of playback sessions currently live",
		},
	)

	SourceSwitchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamgate_source_switches_total",
			Help: "Total number of source/server switches",
		},
	)

	StaleExchangesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamgate_stale_exchanges_discarded_total",
			Help: "Protected URL exchange responses discarded as stale",
		},
	)

	HLSFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamgate_hls_fallbacks_total",
			Help: "Adaptive engine failures recovered via native HLS",
		},
	)

	// Access Gate Metrics
	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_gate_decisions_total",
			Help: "Access gate decisions",
		},
		[]string{"tier", "locked"},
	)

	// Protected URL Exchange Metrics
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_exchanges_total",
			Help: "Protected URL exchange attempts",
		},
		[]string{"result"},
	)

	ExchangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamgate_exchange_duration_seconds",
			Help:    "Protected URL exchange latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Bandwidth Metrics
	BandwidthEstimates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamgate_bandwidth_estimate_bps",
			Help:    "Bandwidth estimates in bits per second",
			Buckets: prometheus.ExponentialBuckets(250_000, 2, 12), // 250kbps to ~1Gbps
		},
		[]string{"method"},
	)

	// Progress Metrics
	ProgressSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_progress_saves_total",
			Help: "Watch-progress save attempts",
		},
		[]string{"status"},
	)

	ContentCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamgate_content_completed_total",
			Help: "Content items marked completed",
		},
	)

	// Rental Metrics
	RentalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamgate_rentals_total",
			Help: "Total rental purchases recorded",
		},
	)

	RentalsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamgate_rentals_expired_total",
			Help: "Rentals removed by the expiry sweep",
		},
	)

	// Queue Metrics
	QueueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamgate_queue_depth",
			Help: "Playback events waiting in the queue",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_events_published_total",
			Help: "Playback events published to the queue",
		},
		[]string{"type", "status"},
	)

	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_events_consumed_total",
			Help: "Playback events consumed from the queue",
		},
		[]string{"type", "status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordSessionStarted records a session start
func RecordSessionStarted(mediaType, streamKind string) {
	SessionsStartedTotal.WithLabelValues(mediaType, streamKind).Inc()
	SessionsActive.Inc()
}

// RecordSessionTornDown records a session teardown
func RecordSessionTornDown() {
	SessionsActive.Dec()
}

// RecordGateDecision records an access gate decision
func RecordGateDecision(tier string, locked bool) {
	l := "false"
	if locked {
		l = "true"
	}
	GateDecisionsTotal.WithLabelValues(tier, l).Inc()
}

// RecordExchange records a protected URL exchange outcome
func RecordExchange(result string, duration float64) {
	ExchangesTotal.WithLabelValues(result).Inc()
	ExchangeDuration.Observe(duration)
}

// RecordBandwidthEstimate records a bandwidth estimate
func RecordBandwidthEstimate(method string, bps int64) {
	BandwidthEstimates.WithLabelValues(method).Observe(float64(bps))
}

// RecordProgressSave records a watch-progress save attempt
func RecordProgressSave(status string) {
	ProgressSavesTotal.WithLabelValues(status).Inc()
}

// RecordEventPublished records an event publish
func RecordEventPublished(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordEventConsumed records an event consume
func RecordEventConsumed(eventType, status string) {
	EventsConsumedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
