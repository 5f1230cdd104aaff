package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	ClientID string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "replenishment-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas
	}
}

// Topics contains all kanban Kafka topic names
var Topics = struct {
	OrderEvents        string
	DeliveryEvents     string
	NotificationsQueue string
}{
	OrderEvents:        "kanban.orders.events",
	DeliveryEvents:     "kanban.deliveries.events",
	NotificationsQueue: "kanban.notifications",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for kanban topics
func DefaultTopicConfigs() []TopicConfig {
	return []TopicConfig{
		{Name: Topics.OrderEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 60 * 60 * 1000},      // 7 days
		{Name: Topics.DeliveryEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 30 * 24 * 60 * 60 * 1000},  // 30 days
		{Name: Topics.NotificationsQueue, Partitions: 3, ReplicationFactor: 3, RetentionMs: 24 * 60 * 60 * 1000},   // 1 day
	}
}
