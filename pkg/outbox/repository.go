package outbox

import "context"

// Repository is the persistence contract the publisher drains events from.
// Save and SaveAll run inside the caller's transaction so staged events
// commit atomically with the state change that produced them.
type Repository interface {
	// Save stages a single outbox event
	Save(ctx context.Context, event *OutboxEvent) error

	// SaveAll stages multiple outbox events in one write
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns events still awaiting publication, oldest
	// first, skipping events past their retry budget
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished stamps an event as delivered to the broker
	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry bumps the retry counter and records the last failure
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes published events older than olderThan seconds
	DeletePublished(ctx context.Context, olderThan int64) error

	// GetByID retrieves one outbox event
	GetByID(ctx context.Context, eventID string) (*OutboxEvent, error)

	// FindByAggregateID returns every staged event for an aggregate
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
