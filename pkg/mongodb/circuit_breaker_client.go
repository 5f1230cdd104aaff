package mongodb

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kanban-platform/replenishment-service/pkg/logging"
	"github.com/kanban-platform/replenishment-service/pkg/metrics"
	"github.com/kanban-platform/replenishment-service/pkg/resilience"
)

// GuardedClient wraps Client with circuit breaker protection and
// per-operation metrics. Repositories map breaker-open errors to the
// store-unavailable error code.
type GuardedClient struct {
	client         *Client
	circuitBreaker *resilience.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *logging.Logger
}

// NewGuardedClient creates a circuit breaker protected MongoDB client
func NewGuardedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *GuardedClient {
	config := &resilience.CircuitBreakerConfig{
		Name:                  "mongodb",
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

	return &GuardedClient{
		client:         client,
		circuitBreaker: resilience.NewCircuitBreaker(config, slogLogger),
		metrics:        m,
		logger:         logger,
	}
}

// Collection returns a circuit breaker protected collection
func (c *GuardedClient) Collection(name string) *GuardedCollection {
	return &GuardedCollection{
		collection:     c.client.Collection(name),
		circuitBreaker: c.circuitBreaker,
		metrics:        c.metrics,
		logger:         c.logger,
	}
}

// Database returns the underlying database handle
func (c *GuardedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Client returns the underlying MongoDB client
func (c *GuardedClient) Client() *mongo.Client {
	return c.client.Client()
}

// Close disconnects the client
func (c *GuardedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck performs a health check with circuit breaker protection
func (c *GuardedClient) HealthCheck(ctx context.Context) error {
	_, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.client.HealthCheck(ctx)
	})
	return err
}

// WithTransaction executes a function within a transaction with circuit breaker protection
func (c *GuardedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	_, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.client.WithTransaction(ctx, fn)
	})
	return err
}

// IsUnavailable reports whether the error came from an open or saturated breaker
func IsUnavailable(err error) bool {
	return resilience.IsCircuitBreakerError(err)
}

// GuardedCollection wraps a collection with circuit breaker protection
type GuardedCollection struct {
	collection     *mongo.Collection
	circuitBreaker *resilience.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *logging.Logger
}

func (c *GuardedCollection) execute(ctx context.Context, op string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := c.circuitBreaker.Execute(ctx, fn)
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.collection.Name(), op, err == nil, duration)
	}
	if err != nil && c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.collection.Name(), op, duration, false, 0)
	}
	return result, err
}

// InsertOne inserts a single document with circuit breaker protection
func (c *GuardedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	result, err := c.execute(ctx, "insertOne", func() (interface{}, error) {
		return c.collection.InsertOne(ctx, document, opts...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.InsertOneResult), nil
}

// FindOne finds a single document. Decode errors surface on the returned result.
func (c *GuardedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*mongo.SingleResult, error) {
	result, err := c.execute(ctx, "findOne", func() (interface{}, error) {
		return c.collection.FindOne(ctx, filter, opts...), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.SingleResult), nil
}

// Find finds multiple documents with circuit breaker protection
func (c *GuardedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	result, err := c.execute(ctx, "find", func() (interface{}, error) {
		return c.collection.Find(ctx, filter, opts...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.Cursor), nil
}

// UpdateOne updates a single document with circuit breaker protection
func (c *GuardedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	result, err := c.execute(ctx, "updateOne", func() (interface{}, error) {
		return c.collection.UpdateOne(ctx, filter, update, opts...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.UpdateResult), nil
}

// FindOneAndUpdate finds and updates a document with circuit breaker protection
func (c *GuardedCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) (*mongo.SingleResult, error) {
	result, err := c.execute(ctx, "findOneAndUpdate", func() (interface{}, error) {
		return c.collection.FindOneAndUpdate(ctx, filter, update, opts...), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.SingleResult), nil
}

// DeleteOne deletes a single document with circuit breaker protection
func (c *GuardedCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	result, err := c.execute(ctx, "deleteOne", func() (interface{}, error) {
		return c.collection.DeleteOne(ctx, filter, opts...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.DeleteResult), nil
}

// DeleteMany deletes multiple documents with circuit breaker protection
func (c *GuardedCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	result, err := c.execute(ctx, "deleteMany", func() (interface{}, error) {
		return c.collection.DeleteMany(ctx, filter, opts...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.DeleteResult), nil
}

// CountDocuments counts documents with circuit breaker protection
func (c *GuardedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	result, err := c.execute(ctx, "countDocuments", func() (interface{}, error) {
		return c.collection.CountDocuments(ctx, filter, opts...)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// Aggregate runs an aggregation pipeline with circuit breaker protection
func (c *GuardedCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	result, err := c.execute(ctx, "aggregate", func() (interface{}, error) {
		return c.collection.Aggregate(ctx, pipeline, opts...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*mongo.Cursor), nil
}

// Underlying returns the raw mongo collection, for index creation and tests
func (c *GuardedCollection) Underlying() *mongo.Collection {
	return c.collection
}

// Name returns the collection name
func (c *GuardedCollection) Name() string {
	return c.collection.Name()
}

// NewProductionClient creates a connected MongoDB client wrapped with the circuit breaker
func NewProductionClient(ctx context.Context, config *Config, m *metrics.Metrics, logger *logging.Logger) (*GuardedClient, error) {
	baseClient, err := NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewGuardedClient(baseClient, m, logger), nil
}
