package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	"github.com/kanban-platform/replenishment-service/pkg/api"
	apperrors "github.com/kanban-platform/replenishment-service/pkg/errors"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
	"github.com/kanban-platform/replenishment-service/pkg/mongodb"
)

// BusinessRecorder records business-level counters for order lifecycle events
type BusinessRecorder interface {
	RecordOrderRequested(location string)
	RecordOrderDispatched()
	RecordOrderDelivered(onTime bool, leadTimeMinutes int, suspicious bool)
	RecordOrderCancelled()
	RecordDuplicateScan()
}

// ReplenishmentService handles the kanban replenishment order lifecycle
type ReplenishmentService struct {
	orderRepo domain.OrderRepository
	catalog   domain.CardCatalog
	guard     *DuplicateGuard
	recorder  BusinessRecorder
	logger    *logging.Logger
}

// NewReplenishmentService creates a new replenishment service
func NewReplenishmentService(
	orderRepo domain.OrderRepository,
	catalog domain.CardCatalog,
	guard *DuplicateGuard,
	recorder BusinessRecorder,
	logger *logging.Logger,
) *ReplenishmentService {
	return &ReplenishmentService{
		orderRepo: orderRepo,
		catalog:   catalog,
		guard:     guard,
		recorder:  recorder,
		logger:    logger.WithComponent("replenishment-service"),
	}
}

// ScanCard processes a card scan at a line-side rack. Scanning a card
// with no active order opens one; scanning a card whose order is already
// requested reports that without failing; scanning a card whose order is
// in transit confirms the delivery.
func (s *ReplenishmentService) ScanCard(ctx context.Context, cmd ScanCardCommand) (*ScanResultDTO, error) {
	card, err := s.catalog.FindByCardID(ctx, cmd.CardID)
	if err != nil {
		return nil, s.storeError(err)
	}
	if card == nil {
		return nil, apperrors.ErrUnknownCard(cmd.CardID)
	}

	existing, err := s.guard.ActiveOrder(ctx, cmd.CardID)
	if err != nil {
		return nil, s.storeError(err)
	}

	if existing != nil {
		if existing.Status == domain.OrderStatusInTransit {
			dto, err := s.completeDelivery(ctx, existing, cmd.Operator)
			if err != nil {
				return nil, err
			}
			return &ScanResultDTO{Result: ScanResultDelivered, Order: dto}, nil
		}

		s.recorder.RecordDuplicateScan()
		s.logger.Event(ctx, "kanban.card.duplicate_scan", map[string]any{
			"cardId":  cmd.CardID,
			"orderId": existing.OrderID,
			"status":  existing.Status,
		})
		return &ScanResultDTO{
			Result: ScanResultAlreadyRequested,
			Order:  ToOrderDTO(existing, time.Now()),
		}, nil
	}

	order := domain.NewOrder(uuid.NewString(), card, cmd.RequestedBy)
	if err := s.orderRepo.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrDuplicateActiveOrder) {
			// Lost the race to a concurrent scan, report that order instead
			winner, guardErr := s.guard.ActiveOrder(ctx, cmd.CardID)
			if guardErr != nil {
				return nil, s.storeError(guardErr)
			}
			if winner == nil {
				return nil, apperrors.ErrConflict("card order changed during scan, retry")
			}
			s.recorder.RecordDuplicateScan()
			return &ScanResultDTO{
				Result: ScanResultAlreadyRequested,
				Order:  ToOrderDTO(winner, time.Now()),
			}, nil
		}
		return nil, s.storeError(err)
	}

	s.recorder.RecordOrderRequested(order.Location)
	s.logger.OrderTransition(ctx, order.OrderID, order.CardID, "", string(order.Status), order.RequestedBy)

	return &ScanResultDTO{
		Result: ScanResultCreated,
		Order:  ToOrderDTO(order, time.Now()),
	}, nil
}

// DispatchOrder marks a pending order as picked up by a warehouse operator
func (s *ReplenishmentService) DispatchOrder(ctx context.Context, cmd DispatchOrderCommand) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if err := order.Dispatch(cmd.Operator); err != nil {
		return nil, apperrors.MapDomainError(err)
	}

	if err := s.orderRepo.Transition(ctx, order, from); err != nil {
		if errors.Is(err, domain.ErrTransitionConflict) {
			return nil, apperrors.ErrInvalidTransition(err.Error())
		}
		return nil, s.storeError(err)
	}

	s.recorder.RecordOrderDispatched()
	s.logger.OrderTransition(ctx, order.OrderID, order.CardID, string(from), string(order.Status), cmd.Operator)

	return ToOrderDTO(order, time.Now()), nil
}

// DeliverOrder confirms an in-transit order was delivered to its location
func (s *ReplenishmentService) DeliverOrder(ctx context.Context, cmd DeliverOrderCommand) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	return s.completeDelivery(ctx, order, cmd.Operator)
}

// CancelOrder cancels an active order, keeping the prior status for audit
func (s *ReplenishmentService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if err := order.Cancel(cmd.Reason); err != nil {
		return nil, apperrors.MapDomainError(err)
	}

	if err := s.orderRepo.Transition(ctx, order, from); err != nil {
		if errors.Is(err, domain.ErrTransitionConflict) {
			return nil, apperrors.ErrInvalidTransition(err.Error())
		}
		return nil, s.storeError(err)
	}

	s.recorder.RecordOrderCancelled()
	s.logger.OrderTransition(ctx, order.OrderID, order.CardID, string(from), string(order.Status), "")

	return ToOrderDTO(order, time.Now()), nil
}

// GetOrder retrieves an order from the active or completed store
func (s *ReplenishmentService) GetOrder(ctx context.Context, query GetOrderQuery) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}
	return ToOrderDTO(order, time.Now()), nil
}

// ListActiveOrders lists pending and in-transit orders with pagination
func (s *ReplenishmentService) ListActiveOrders(ctx context.Context, query ListActiveOrdersQuery) (*api.PageResponse[OrderDTO], error) {
	filter := domain.ActiveOrderFilter{
		Location: query.Location,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	if query.Status != "" {
		status := domain.OrderStatus(query.Status)
		if !status.IsActive() && status != domain.OrderStatusCancelled {
			return nil, apperrors.ErrValidationWithFields("invalid status filter", map[string]string{
				"status": "must be PENDING, IN_TRANSIT or CANCELLED",
			})
		}
		filter.Status = status
	}

	orders, total, err := s.orderRepo.FindActive(ctx, filter)
	if err != nil {
		return nil, s.storeError(err)
	}

	page := api.NewPageResponse(ToOrderDTOs(orders), filter.Page, filter.PageSize, total)
	return &page, nil
}

// Stats returns the dashboard counters
func (s *ReplenishmentService) Stats(ctx context.Context) (*domain.OrderCounts, error) {
	counts, err := s.orderRepo.Counts(ctx, time.Now())
	if err != nil {
		return nil, s.storeError(err)
	}
	return counts, nil
}

// Locations returns the per-delivery-point active order rollup
func (s *ReplenishmentService) Locations(ctx context.Context) (*LocationRollupDTO, error) {
	rollup, err := s.orderRepo.LocationRollup(ctx)
	if err != nil {
		return nil, s.storeError(err)
	}
	return &LocationRollupDTO{Locations: rollup}, nil
}

// KPIReport builds the delivery KPI report over completed orders since
// the given time. When the completed store cannot be read the report
// degrades to an empty one instead of failing, so dashboards stay up.
func (s *ReplenishmentService) KPIReport(ctx context.Context, query KPIReportQuery) (*domain.KPIReport, error) {
	now := time.Now().UTC()
	since := query.Since
	if since.IsZero() {
		since = now.AddDate(0, 0, -30)
	}

	completed, err := s.orderRepo.FindCompletedSince(ctx, since)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("KPI report degraded, completed store unreadable",
			"windowStart", since,
		)
		return domain.EmptyKPIReport(since, now, true), nil
	}

	return domain.BuildKPIReport(completed, since, now), nil
}

func (s *ReplenishmentService) completeDelivery(ctx context.Context, order *domain.Order, operator string) (*OrderDTO, error) {
	if operator == "" {
		// A scan without an operator name credits whoever took the order
		operator = order.TakenBy
	}

	from := order.Status
	if err := order.Deliver(operator); err != nil {
		return nil, apperrors.MapDomainError(err)
	}

	if err := s.orderRepo.CompleteDelivery(ctx, order); err != nil {
		if errors.Is(err, domain.ErrTransitionConflict) {
			return nil, apperrors.ErrInvalidTransition(err.Error())
		}
		return nil, s.storeError(err)
	}

	m := order.Metrics
	s.recorder.RecordOrderDelivered(m.OnTimeDelivery, m.TotalLeadTime, m.IsSuspicious)
	s.logger.OrderTransition(ctx, order.OrderID, order.CardID, string(from), string(order.Status), operator)
	if m.IsSuspicious {
		s.logger.Event(ctx, "kanban.delivery.suspicious", map[string]any{
			"orderId":       order.OrderID,
			"deliveredBy":   order.DeliveredBy,
			"executionTime": m.ExecutionTime,
		})
	}

	return ToOrderDTO(order, time.Now()), nil
}

func (s *ReplenishmentService) findOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, s.storeError(err)
	}
	if order == nil {
		return nil, apperrors.ErrNotFoundWithID("order", orderID)
	}
	return order, nil
}

func (s *ReplenishmentService) storeError(err error) error {
	if mongodb.IsUnavailable(err) {
		return apperrors.ErrStoreUnavailable(err)
	}
	return apperrors.FromError(err)
}
