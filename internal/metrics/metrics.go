package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPRequestSize       prometheus.HistogramVec
	HTTPResponseSize      prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Database metrics
	DatabaseQueryDuration   prometheus.HistogramVec
	DatabaseQueriesTotal    prometheus.CounterVec
	DatabaseConnectionsOpen prometheus.GaugeVec

	// Redis metrics
	RedisOperationDuration prometheus.HistogramVec
	RedisOperationsTotal   prometheus.CounterVec
	RedisConnectionsOpen   prometheus.GaugeVec

	// Moderation metrics
	ClassificationsTotal   prometheus.CounterVec
	ModerationActionsTotal prometheus.CounterVec
	AutoModerationTotal    prometheus.CounterVec

	// Presence metrics
	PresenceHeartbeatsTotal prometheus.CounterVec
	PresenceOnline          prometheus.GaugeVec
	PresenceEvictedTotal    prometheus.CounterVec

	// Notification metrics
	NotificationsTotal    prometheus.CounterVec
	NotificationQueueSize prometheus.GaugeVec

	// WebSocket metrics
	WebSocketConnections prometheus.GaugeVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Rate limiting metrics
			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			// Database metrics
			DatabaseQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total number of database queries",
				},
				[]string{"query_type", "table", "status"},
			),
			DatabaseConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of currently open database connections",
				},
				[]string{"database"},
			),

			// Redis metrics
			RedisOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "redis_operation_duration_seconds",
					Help:    "Redis operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "key_pattern"},
			),
			RedisOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),
			RedisConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "redis_connections_open",
					Help: "Number of currently open Redis connections",
				},
				[]string{"instance"},
			),

			// Moderation metrics
			ClassificationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "moderation_classifications_total",
					Help: "Total number of text classifications by outcome",
				},
				[]string{"outcome", "reason"},
			),
			ModerationActionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "moderation_actions_total",
					Help: "Total number of hide/unhide actions",
				},
				[]string{"action", "content_type", "actor"},
			),
			AutoModerationTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "moderation_auto_scans_total",
					Help: "Total number of automatic moderation scans by outcome",
				},
				[]string{"outcome", "reason"},
			),

			// Presence metrics
			PresenceHeartbeatsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "presence_heartbeats_total",
					Help: "Total number of presence heartbeats",
				},
				[]string{"visitor_type"},
			),
			PresenceOnline: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "presence_online",
					Help: "Number of live sessions by visitor type",
				},
				[]string{"visitor_type"},
			),
			PresenceEvictedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "presence_evicted_total",
					Help: "Total number of expired sessions evicted",
				},
				[]string{"store"},
			),

			// Notification metrics
			NotificationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_total",
					Help: "Total number of moderation notifications by delivery status",
				},
				[]string{"channel", "status"},
			),
			NotificationQueueSize: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "notification_queue_pending",
					Help: "Number of notifications waiting in the queue",
				},
				[]string{},
			),

			// WebSocket metrics
			WebSocketConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Number of open websocket connections",
				},
				[]string{},
			),

			// Error metrics
			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
