package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all replenishment service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublishes *prometheus.CounterVec
	OutboxRetries   prometheus.Counter

	// Business metrics
	OrdersRequested      *prometheus.CounterVec
	OrdersDispatched     prometheus.Counter
	OrdersDelivered      *prometheus.CounterVec
	OrdersCancelled      prometheus.Counter
	DuplicateScans       prometheus.Counter
	DeliveryLeadTime     prometheus.Histogram
	SuspiciousDeliveries prometheus.Counter
	ActiveOrders         *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
	Subsystem   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "kanban",
		Subsystem:   serviceName,
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	// HTTP metrics
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Kafka metrics
	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_published_total",
			Help:      "Total number of Kafka events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	// MongoDB metrics
	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	// Outbox metrics
	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_pending_events",
			Help:        "Number of outbox events waiting to be published",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.OutboxPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_publishes_total",
			Help:      "Total number of outbox publish attempts",
		},
		[]string{"service", "status"},
	)

	m.OutboxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_retries_total",
			Help:        "Total number of outbox publish retries",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	// Business metrics
	m.OrdersRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "replenishment_orders_requested_total",
			Help:      "Total number of replenishment orders opened",
		},
		[]string{"service", "location"},
	)

	m.OrdersDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "replenishment_orders_dispatched_total",
			Help:        "Total number of orders taken in transit",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.OrdersDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "replenishment_orders_delivered_total",
			Help:      "Total number of delivered orders",
		},
		[]string{"service", "sla"},
	)

	m.OrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "replenishment_orders_cancelled_total",
			Help:        "Total number of cancelled orders",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.DuplicateScans = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "replenishment_duplicate_scans_total",
			Help:        "Scans rejected because the card already had an active order",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.DeliveryLeadTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "replenishment_delivery_lead_time_minutes",
			Help:        "Total lead time of delivered orders in minutes",
			Buckets:     []float64{5, 10, 15, 20, 30, 45, 60, 90, 120, 240},
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.SuspiciousDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "replenishment_suspicious_deliveries_total",
			Help:        "Deliveries flagged as suspiciously fast",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.ActiveOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "replenishment_active_orders",
			Help:      "Current number of orders by active status",
		},
		[]string{"service", "status"},
	)

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.OutboxPublishes,
		m.OutboxRetries,
		m.OrdersRequested,
		m.OrdersDispatched,
		m.OrdersDelivered,
		m.OrdersCancelled,
		m.DuplicateScans,
		m.DeliveryLeadTime,
		m.SuspiciousDeliveries,
		m.ActiveOrders,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of pending outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox publish attempt
func (m *Metrics) RecordOutboxPublish(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.OutboxPublishes.WithLabelValues(m.serviceName, status).Inc()
}

// RecordOutboxRetry records an outbox publish retry
func (m *Metrics) RecordOutboxRetry() {
	m.OutboxRetries.Inc()
}

// RecordOrderRequested records a newly opened order
func (m *Metrics) RecordOrderRequested(location string) {
	m.OrdersRequested.WithLabelValues(m.serviceName, location).Inc()
}

// RecordOrderDispatched records an order taken in transit
func (m *Metrics) RecordOrderDispatched() {
	m.OrdersDispatched.Inc()
}

// RecordOrderDelivered records a completed delivery
func (m *Metrics) RecordOrderDelivered(onTime bool, leadTimeMinutes int, suspicious bool) {
	sla := "on_time"
	if !onTime {
		sla = "late"
	}
	m.OrdersDelivered.WithLabelValues(m.serviceName, sla).Inc()
	m.DeliveryLeadTime.Observe(float64(leadTimeMinutes))
	if suspicious {
		m.SuspiciousDeliveries.Inc()
	}
}

// RecordOrderCancelled records a cancelled order
func (m *Metrics) RecordOrderCancelled() {
	m.OrdersCancelled.Inc()
}

// RecordDuplicateScan records a scan that resolved to an existing active order
func (m *Metrics) RecordDuplicateScan() {
	m.DuplicateScans.Inc()
}

// SetActiveOrders sets the active order gauge for a status
func (m *Metrics) SetActiveOrders(status string, count int) {
	m.ActiveOrders.WithLabelValues(m.serviceName, status).Set(float64(count))
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
