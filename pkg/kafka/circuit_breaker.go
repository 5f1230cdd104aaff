package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/kanban-platform/replenishment-service/pkg/cloudevents"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
	"github.com/kanban-platform/replenishment-service/pkg/metrics"
	"github.com/kanban-platform/replenishment-service/pkg/resilience"
)

// CircuitBreakerProducer wraps Producer with circuit breaker protection
// and per-publish metrics. The outbox publisher sits on top of it, so a
// broker outage trips the breaker without touching order transitions.
type CircuitBreakerProducer struct {
	producer       *Producer
	circuitBreaker *resilience.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *logging.Logger
}

// NewCircuitBreakerProducer creates a new circuit breaker protected Kafka producer
func NewCircuitBreakerProducer(producer *Producer, m *metrics.Metrics, logger *logging.Logger) *CircuitBreakerProducer {
	config := &resilience.CircuitBreakerConfig{
		Name:                  "kafka-producer",
		MaxRequests:           5,
		Interval:              60 * time.Second,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}

	var slogLogger *slog.Logger
	if logger != nil && logger.Logger != nil {
		slogLogger = logger.Logger
	} else {
		slogLogger = slog.Default()
	}

	return &CircuitBreakerProducer{
		producer:       producer,
		circuitBreaker: resilience.NewCircuitBreaker(config, slogLogger),
		metrics:        m,
		logger:         logger,
	}
}

// PublishEvent publishes a CloudEvent with circuit breaker protection
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.KanbanCloudEvent) error {
	start := time.Now()
	_, err := p.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.PublishEvent(ctx, topic, event)
	})
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, duration)
	}
	if p.logger != nil {
		p.logger.KafkaPublish(ctx, topic, event.Type, err == nil, duration)
	}

	return err
}

// Close closes the underlying producer
func (p *CircuitBreakerProducer) Close() error {
	return p.producer.Close()
}

// NewProductionProducer creates a fully configured Kafka producer with metrics and circuit breaker
func NewProductionProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) *CircuitBreakerProducer {
	return NewCircuitBreakerProducer(NewProducer(config), m, logger)
}
