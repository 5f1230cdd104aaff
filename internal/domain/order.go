package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrOrderNotPending   = errors.New("invalid transition: order is not pending")
	ErrOrderNotInTransit = errors.New("invalid transition: order is not in transit")
	ErrOrderTerminal     = errors.New("invalid transition: order is in a terminal status")
	ErrMissingTimestamps = errors.New("order is missing a phase timestamp")
)

// OrderStatus represents the lifecycle status of a replenishment order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusInTransit OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that block a new order for the same card
var ActiveStatuses = []OrderStatus{OrderStatusPending, OrderStatusInTransit}

// IsTerminal returns true for statuses that admit no further transitions
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsActive returns true for statuses that count toward the one-per-card limit
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusInTransit
}

const (
	// DefaultRequestedBy is stamped when a scan carries no requester
	DefaultRequestedBy = "Produccion"
	// UrgencyThreshold is how long a pending order may wait before it is flagged
	UrgencyThreshold = 15 * time.Minute
)

// Order is the aggregate root for the replenishment bounded context.
// Card spec fields are snapshotted at creation so later catalog edits
// never change how a delivery is scored.
type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	OrderID          string             `bson:"orderId"`
	CardID           string             `bson:"cardId"`
	PartNumber       string             `bson:"partNumber"`
	Description      string             `bson:"description"`
	Location         string             `bson:"location"`
	Zone             string             `bson:"zone,omitempty"`
	StandardPack     int                `bson:"standardPack"`
	ComplexityWeight int                `bson:"complexityWeight"`
	TargetLeadTime   int                `bson:"targetLeadTime"`
	StdOpTime        int                `bson:"stdOpTime"`
	Status           OrderStatus        `bson:"status"`
	LastStatus       OrderStatus        `bson:"lastStatus,omitempty"`
	RequestedBy      string             `bson:"requestedBy"`
	TakenBy          string             `bson:"takenBy,omitempty"`
	DeliveredBy      string             `bson:"deliveredBy,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
	DispatchedAt     *time.Time         `bson:"dispatchedAt,omitempty"`
	DeliveredAt      *time.Time         `bson:"deliveredAt,omitempty"`
	CancelledAt      *time.Time         `bson:"cancelledAt,omitempty"`
	Metrics          *DeliveryMetrics   `bson:"metrics,omitempty"`
	DomainEvents     []DomainEvent      `bson:"-"`
}

// NewOrder opens a PENDING replenishment order from a card scan
func NewOrder(orderID string, card *CardSpec, requestedBy string) *Order {
	if requestedBy == "" {
		requestedBy = DefaultRequestedBy
	}

	// Snapshot the normalized delivery point so rollups never key on raw
	// catalog values
	location := card.EffectiveLocation().Name()

	now := time.Now()
	order := &Order{
		OrderID:          orderID,
		CardID:           card.CardID,
		PartNumber:       card.PartNumber,
		Description:      card.Description,
		Location:         location,
		Zone:             card.Zone,
		StandardPack:     card.StandardPack,
		ComplexityWeight: card.ComplexityWeight,
		TargetLeadTime:   card.TargetLeadTime,
		StdOpTime:        card.StdOpTime,
		Status:           OrderStatusPending,
		RequestedBy:      requestedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
		DomainEvents:     make([]DomainEvent, 0),
	}

	order.AddDomainEvent(&OrderRequestedEvent{
		OrderID:      orderID,
		CardID:       card.CardID,
		PartNumber:   card.PartNumber,
		Location:     location,
		StandardPack: card.StandardPack,
		RequestedBy:  requestedBy,
		RequestedAt:  now,
	})

	return order
}

// Dispatch marks the order as picked up by a materials operator
func (o *Order) Dispatch(takenBy string) error {
	if o.Status.IsTerminal() {
		return ErrOrderTerminal
	}
	if o.Status != OrderStatusPending {
		return ErrOrderNotPending
	}

	now := time.Now()
	o.Status = OrderStatusInTransit
	o.TakenBy = takenBy
	o.DispatchedAt = &now
	o.UpdatedAt = now

	o.AddDomainEvent(&OrderDispatchedEvent{
		OrderID:      o.OrderID,
		CardID:       o.CardID,
		PartNumber:   o.PartNumber,
		Location:     o.Location,
		TakenBy:      takenBy,
		DispatchedAt: now,
	})

	return nil
}

// Deliver closes the order, scoring the delivery from its phase timestamps
func (o *Order) Deliver(deliveredBy string) error {
	if o.Status.IsTerminal() {
		return ErrOrderTerminal
	}
	if o.Status != OrderStatusInTransit {
		return ErrOrderNotInTransit
	}
	if o.CreatedAt.IsZero() || o.DispatchedAt == nil {
		return ErrMissingTimestamps
	}

	now := time.Now()
	metrics := ComputeDeliveryMetrics(o.CreatedAt, *o.DispatchedAt, now, o.card())

	o.Status = OrderStatusDelivered
	o.DeliveredBy = deliveredBy
	o.DeliveredAt = &now
	o.UpdatedAt = now
	o.Metrics = &metrics

	o.AddDomainEvent(&OrderDeliveredEvent{
		OrderID:        o.OrderID,
		CardID:         o.CardID,
		PartNumber:     o.PartNumber,
		Location:       o.Location,
		DeliveredBy:    deliveredBy,
		TotalLeadTime:  metrics.TotalLeadTime,
		OnTimeDelivery: metrics.OnTimeDelivery,
		EffortPoints:   metrics.EffortPoints,
		IsSuspicious:   metrics.IsSuspicious,
		DeliveredAt:    now,
	})

	return nil
}

// Cancel voids the order from any active state
func (o *Order) Cancel(reason string) error {
	if o.Status.IsTerminal() {
		return ErrOrderTerminal
	}

	now := time.Now()
	o.LastStatus = o.Status
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now

	o.AddDomainEvent(&OrderCancelledEvent{
		OrderID:     o.OrderID,
		CardID:      o.CardID,
		LastStatus:  string(o.LastStatus),
		Reason:      reason,
		CancelledAt: now,
	})

	return nil
}

// IsUrgent reports whether a pending order has waited past the urgency threshold
func (o *Order) IsUrgent(now time.Time) bool {
	return o.Status == OrderStatusPending && now.Sub(o.CreatedAt) > UrgencyThreshold
}

// IsActive returns true while the order still blocks its card
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

// WaitingTime returns how long the order has been open, in minutes
func (o *Order) WaitingTime(now time.Time) int {
	d := now.Sub(o.CreatedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// card rebuilds the spec snapshot used for metric normalization
func (o *Order) card() *CardSpec {
	return &CardSpec{
		CardID:           o.CardID,
		PartNumber:       o.PartNumber,
		Description:      o.Description,
		Location:         o.Location,
		Zone:             o.Zone,
		StandardPack:     o.StandardPack,
		ComplexityWeight: o.ComplexityWeight,
		TargetLeadTime:   o.TargetLeadTime,
		StdOpTime:        o.StdOpTime,
	}
}

// AddDomainEvent adds a domain event
func (o *Order) AddDomainEvent(event DomainEvent) {
	o.DomainEvents = append(o.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (o *Order) ClearDomainEvents() {
	o.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (o *Order) GetDomainEvents() []DomainEvent {
	return o.DomainEvents
}
