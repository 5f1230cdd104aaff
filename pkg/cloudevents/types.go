package cloudevents

import (
	"time"
)

// EventType constants for replenishment domain events
const (
	OrderRequested  = "kanban.order.requested"
	OrderDispatched = "kanban.order.dispatched"
	OrderDelivered  = "kanban.order.delivered"
	OrderCancelled  = "kanban.order.cancelled"
)

// Source constants for event sources
const (
	SourceReplenishment = "/kanban/replenishment-service"
)

// KanbanCloudEvent represents a CloudEvents v1.0 compliant event
type KanbanCloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	// Kanban-specific extensions
	CorrelationID string `json:"kanbancorrelationid,omitempty"`
	CardID        string `json:"kanbancardid,omitempty"`
	Location      string `json:"kanbanlocation,omitempty"`
}
