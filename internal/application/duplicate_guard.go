package application

import (
	"context"
	"fmt"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
)

// DuplicateGuard resolves the active order for a card. A card is
// supposed to carry at most one active order; the repository enforces
// that with a unique index, but records written before the index was
// introduced can still violate it.
type DuplicateGuard struct {
	repo   domain.OrderRepository
	logger *logging.Logger
}

// NewDuplicateGuard creates a duplicate guard over the order repository
func NewDuplicateGuard(repo domain.OrderRepository, logger *logging.Logger) *DuplicateGuard {
	return &DuplicateGuard{
		repo:   repo,
		logger: logger.WithComponent("duplicate-guard"),
	}
}

// ActiveOrder returns the active order for the card, or nil when the
// card has none. When more than one active order exists the earliest
// one wins and the anomaly is logged for reconciliation.
func (g *DuplicateGuard) ActiveOrder(ctx context.Context, cardID string) (*domain.Order, error) {
	orders, err := g.repo.FindActiveByCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active orders for card %s: %w", cardID, err)
	}

	if len(orders) == 0 {
		return nil, nil
	}

	if len(orders) > 1 {
		orderIDs := make([]string, 0, len(orders))
		for _, order := range orders {
			orderIDs = append(orderIDs, order.OrderID)
		}
		g.logger.WithContext(ctx).Warn("Card has multiple active orders",
			"cardId", cardID,
			"count", len(orders),
			"orderIds", orderIDs,
			"resolvedOrderId", orders[0].OrderID,
		)
	}

	// FindActiveByCard sorts by createdAt ascending
	return orders[0], nil
}
