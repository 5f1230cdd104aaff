package domain

import (
	"context"
	"errors"
	"time"
)

// Repository sentinel errors
var (
	// ErrDuplicateActiveOrder is returned when an insert loses the
	// one-active-order-per-card race
	ErrDuplicateActiveOrder = errors.New("card already has an active order")
	// ErrTransitionConflict is returned when a status-guarded update
	// matches no document: another transition won
	ErrTransitionConflict = errors.New("transition precondition failed: order status changed")
)

// ActiveOrderFilter narrows the active order listing
type ActiveOrderFilter struct {
	Status   OrderStatus
	Location string
	Page     int64
	PageSize int64
}

// OrderCounts holds the dashboard counters
type OrderCounts struct {
	Pending        int64 `json:"pending"`
	InTransit      int64 `json:"inTransit"`
	DeliveredToday int64 `json:"deliveredToday"`
}

// LocationCount is the per-delivery-point rollup for the andon board
type LocationCount struct {
	Location  string `bson:"_id" json:"location"`
	Pending   int64  `bson:"pending" json:"pending"`
	InTransit int64  `bson:"inTransit" json:"inTransit"`
}

// OrderRepository defines persistence for the order aggregate
type OrderRepository interface {
	// Create inserts a PENDING order, returning ErrDuplicateActiveOrder
	// when the card already has an active one
	Create(ctx context.Context, order *Order) error
	FindByOrderID(ctx context.Context, orderID string) (*Order, error)
	// FindActiveByCard returns active orders for a card, earliest first
	FindActiveByCard(ctx context.Context, cardID string) ([]*Order, error)
	FindActive(ctx context.Context, filter ActiveOrderFilter) ([]*Order, int64, error)
	// Transition persists an in-place status change guarded by the
	// expected previous status
	Transition(ctx context.Context, order *Order, expected OrderStatus) error
	// CompleteDelivery moves the order to the completed store and removes
	// it from the active store in one transaction
	CompleteDelivery(ctx context.Context, order *Order) error
	FindCompletedSince(ctx context.Context, since time.Time) ([]*Order, error)
	Counts(ctx context.Context, now time.Time) (*OrderCounts, error)
	LocationRollup(ctx context.Context) ([]LocationCount, error)
	// RemoveReconciled deletes active records whose orderId already exists
	// in the completed store, returning how many were repaired
	RemoveReconciled(ctx context.Context) (int64, error)
}

// CardCatalog defines read access to the kanban card master data
type CardCatalog interface {
	// FindByCardID returns nil when the card is not registered
	FindByCardID(ctx context.Context, cardID string) (*CardSpec, error)
}
