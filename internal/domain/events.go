package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// OrderRequestedEvent is published when a card scan opens a new order
type OrderRequestedEvent struct {
	OrderID      string    `json:"orderId"`
	CardID       string    `json:"cardId"`
	PartNumber   string    `json:"partNumber"`
	Location     string    `json:"location"`
	StandardPack int       `json:"standardPack"`
	RequestedBy  string    `json:"requestedBy"`
	RequestedAt  time.Time `json:"requestedAt"`
}

func (e *OrderRequestedEvent) EventType() string     { return "kanban.order.requested" }
func (e *OrderRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }

// OrderDispatchedEvent is published when an operator picks up an order
type OrderDispatchedEvent struct {
	OrderID      string    `json:"orderId"`
	CardID       string    `json:"cardId"`
	PartNumber   string    `json:"partNumber"`
	Location     string    `json:"location"`
	TakenBy      string    `json:"takenBy"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

func (e *OrderDispatchedEvent) EventType() string     { return "kanban.order.dispatched" }
func (e *OrderDispatchedEvent) OccurredAt() time.Time { return e.DispatchedAt }

// OrderDeliveredEvent is published when an order closes with its scorecard
type OrderDeliveredEvent struct {
	OrderID        string    `json:"orderId"`
	CardID         string    `json:"cardId"`
	PartNumber     string    `json:"partNumber"`
	Location       string    `json:"location"`
	DeliveredBy    string    `json:"deliveredBy"`
	TotalLeadTime  int       `json:"totalLeadTime"`
	OnTimeDelivery bool      `json:"onTimeDelivery"`
	EffortPoints   int       `json:"effortPoints"`
	IsSuspicious   bool      `json:"isSuspicious"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

func (e *OrderDeliveredEvent) EventType() string     { return "kanban.order.delivered" }
func (e *OrderDeliveredEvent) OccurredAt() time.Time { return e.DeliveredAt }

// OrderCancelledEvent is published when an order is voided
type OrderCancelledEvent struct {
	OrderID     string    `json:"orderId"`
	CardID      string    `json:"cardId"`
	LastStatus  string    `json:"lastStatus"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelledAt"`
}

func (e *OrderCancelledEvent) EventType() string     { return "kanban.order.cancelled" }
func (e *OrderCancelledEvent) OccurredAt() time.Time { return e.CancelledAt }
