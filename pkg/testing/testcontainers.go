package testing

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// MongoDBContainer wraps a testcontainers MongoDB instance
type MongoDBContainer struct {
	Container *mongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer creates a new MongoDB testcontainer. It runs as a
// single node replica set so multi-document transactions work.
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	mongoContainer, err := mongodb.Run(ctx,
		"mongo:6",
		mongodb.WithReplicaSet("rs0"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{
		Container: mongoContainer,
		URI:       uri,
	}, nil
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}

// KafkaContainer wraps a testcontainers Kafka instance running in KRaft
// mode, so no separate zookeeper is needed
type KafkaContainer struct {
	Container *kafka.KafkaContainer
	Brokers   []string
}

// NewKafkaContainer creates a new Kafka testcontainer
func NewKafkaContainer(ctx context.Context) (*KafkaContainer, error) {
	container, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("test-cluster"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka container: %w", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get kafka brokers: %w", err)
	}

	return &KafkaContainer{
		Container: container,
		Brokers:   brokers,
	}, nil
}

// Close terminates the Kafka container
func (k *KafkaContainer) Close(ctx context.Context) error {
	if k.Container != nil {
		return k.Container.Terminate(ctx)
	}
	return nil
}

// TestEnvironment holds the containers an integration test needs
type TestEnvironment struct {
	MongoDB *MongoDBContainer
	Kafka   *KafkaContainer
}

// NewTestEnvironment starts MongoDB and, when includeKafka is set, a Kafka
// broker alongside it
func NewTestEnvironment(ctx context.Context, includeKafka bool) (*TestEnvironment, error) {
	env := &TestEnvironment{}

	mongoContainer, err := NewMongoDBContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb container: %w", err)
	}
	env.MongoDB = mongoContainer

	if includeKafka {
		kafkaContainer, err := NewKafkaContainer(ctx)
		if err != nil {
			mongoContainer.Close(ctx)
			return nil, fmt.Errorf("failed to create kafka container: %w", err)
		}
		env.Kafka = kafkaContainer
	}

	return env, nil
}

// Close terminates all containers in the test environment
func (e *TestEnvironment) Close(ctx context.Context) error {
	var errs []error

	if e.MongoDB != nil {
		if err := e.MongoDB.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if e.Kafka != nil {
		if err := e.Kafka.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing test environment: %v", errs)
	}

	return nil
}
