package application

import (
	"time"

	"github.com/kanban-platform/replenishment-service/internal/domain"
)

// Scan results
const (
	// ScanResultCreated means the scan opened a new order
	ScanResultCreated = "created"
	// ScanResultAlreadyRequested means the card already has an active order
	ScanResultAlreadyRequested = "already_requested"
	// ScanResultDelivered means the scan confirmed an in-transit delivery
	ScanResultDelivered = "delivered"
)

// OrderDTO represents a replenishment order in responses
type OrderDTO struct {
	OrderID          string                  `json:"orderId"`
	CardID           string                  `json:"cardId"`
	PartNumber       string                  `json:"partNumber"`
	Description      string                  `json:"description"`
	Location         string                  `json:"location"`
	Zone             string                  `json:"zone,omitempty"`
	StandardPack     int                     `json:"standardPack"`
	ComplexityWeight int                     `json:"complexityWeight"`
	TargetLeadTime   int                     `json:"targetLeadTime"`
	Status           string                  `json:"status"`
	LastStatus       string                  `json:"lastStatus,omitempty"`
	RequestedBy      string                  `json:"requestedBy"`
	TakenBy          string                  `json:"takenBy,omitempty"`
	DeliveredBy      string                  `json:"deliveredBy,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	DispatchedAt     *time.Time              `json:"dispatchedAt,omitempty"`
	DeliveredAt      *time.Time              `json:"deliveredAt,omitempty"`
	CancelledAt      *time.Time              `json:"cancelledAt,omitempty"`
	WaitingMinutes   int                     `json:"waitingMinutes"`
	Urgent           bool                    `json:"urgent"`
	Metrics          *domain.DeliveryMetrics `json:"metrics,omitempty"`
}

// ScanResultDTO represents the outcome of a card scan
type ScanResultDTO struct {
	Result string    `json:"result"`
	Order  *OrderDTO `json:"order"`
}

// LocationRollupDTO represents the andon board rollup
type LocationRollupDTO struct {
	Locations []domain.LocationCount `json:"locations"`
}
