package application

import (
	"time"

	"github.com/kanban-platform/replenishment-service/internal/domain"
)

// ToOrderDTO maps an order aggregate to its response shape.
// Urgency and waiting time are derived against the supplied clock so
// list responses stay consistent within one request.
func ToOrderDTO(order *domain.Order, now time.Time) *OrderDTO {
	return &OrderDTO{
		OrderID:          order.OrderID,
		CardID:           order.CardID,
		PartNumber:       order.PartNumber,
		Description:      order.Description,
		Location:         order.Location,
		Zone:             order.Zone,
		StandardPack:     order.StandardPack,
		ComplexityWeight: order.ComplexityWeight,
		TargetLeadTime:   order.TargetLeadTime,
		Status:           string(order.Status),
		LastStatus:       string(order.LastStatus),
		RequestedBy:      order.RequestedBy,
		TakenBy:          order.TakenBy,
		DeliveredBy:      order.DeliveredBy,
		CreatedAt:        order.CreatedAt,
		DispatchedAt:     order.DispatchedAt,
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
		WaitingMinutes:   order.WaitingTime(now),
		Urgent:           order.IsUrgent(now),
		Metrics:          order.Metrics,
	}
}

// ToOrderDTOs maps a slice of orders against one clock reading
func ToOrderDTOs(orders []*domain.Order) []OrderDTO {
	now := time.Now()
	dtos := make([]OrderDTO, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, *ToOrderDTO(order, now))
	}
	return dtos
}
