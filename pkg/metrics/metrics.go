package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Matching metrics
	MatchingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_attempts_total",
			Help: "Total number of matching attempts by final status",
		},
		[]string{"service", "status"},
	)

	ActiveMatchingGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matching_active_total",
			Help: "Current number of bookings being matched",
		},
		[]string{"service"},
	)

	OffersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_offers_sent_total",
			Help: "Total number of driver offers sent",
		},
		[]string{"service", "status"},
	)

	DriverResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_driver_responses_total",
			Help: "Total number of driver responses by action taken",
		},
		[]string{"service", "action"},
	)

	TimeToMatchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matching_time_to_match_seconds",
			Help:    "Time from booking creation to driver assignment",
			Buckets: []float64{1, 3, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)

	ArmedTimersGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matching_armed_timers_total",
			Help: "Current number of armed in-memory timers",
		},
		[]string{"service", "kind"},
	)

	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"service", "operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"service", "queue", "status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(service, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(service, queue string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesPublished.WithLabelValues(service, queue, status).Inc()
}

// RecordOfferSent records a single driver offer send attempt
func RecordOfferSent(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OffersSentTotal.WithLabelValues(service, status).Inc()
}

// RecordMatchingFinished records the terminal status of a matching attempt
func RecordMatchingFinished(service, status string) {
	MatchingAttemptsTotal.WithLabelValues(service, status).Inc()
	ActiveMatchingGauge.WithLabelValues(service).Dec()
}
