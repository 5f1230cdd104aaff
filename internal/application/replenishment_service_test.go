package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	apperrors "github.com/kanban-platform/replenishment-service/pkg/errors"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
)

type stubOrderRepo struct {
	CreateFn             func(ctx context.Context, order *domain.Order) error
	FindByOrderIDFn      func(ctx context.Context, orderID string) (*domain.Order, error)
	FindActiveByCardFn   func(ctx context.Context, cardID string) ([]*domain.Order, error)
	FindActiveFn         func(ctx context.Context, filter domain.ActiveOrderFilter) ([]*domain.Order, int64, error)
	TransitionFn         func(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error
	CompleteDeliveryFn   func(ctx context.Context, order *domain.Order) error
	FindCompletedSinceFn func(ctx context.Context, since time.Time) ([]*domain.Order, error)
	CountsFn             func(ctx context.Context, now time.Time) (*domain.OrderCounts, error)
	LocationRollupFn     func(ctx context.Context) ([]domain.LocationCount, error)
	RemoveReconciledFn   func(ctx context.Context) (int64, error)
}

func (s *stubOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	if s.FindByOrderIDFn != nil {
		return s.FindByOrderIDFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrderRepo) FindActiveByCard(ctx context.Context, cardID string) ([]*domain.Order, error) {
	if s.FindActiveByCardFn != nil {
		return s.FindActiveByCardFn(ctx, cardID)
	}
	return nil, nil
}

func (s *stubOrderRepo) FindActive(ctx context.Context, filter domain.ActiveOrderFilter) ([]*domain.Order, int64, error) {
	if s.FindActiveFn != nil {
		return s.FindActiveFn(ctx, filter)
	}
	return nil, 0, nil
}

func (s *stubOrderRepo) Transition(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error {
	if s.TransitionFn != nil {
		return s.TransitionFn(ctx, order, expected)
	}
	return nil
}

func (s *stubOrderRepo) CompleteDelivery(ctx context.Context, order *domain.Order) error {
	if s.CompleteDeliveryFn != nil {
		return s.CompleteDeliveryFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindCompletedSince(ctx context.Context, since time.Time) ([]*domain.Order, error) {
	if s.FindCompletedSinceFn != nil {
		return s.FindCompletedSinceFn(ctx, since)
	}
	return nil, nil
}

func (s *stubOrderRepo) Counts(ctx context.Context, now time.Time) (*domain.OrderCounts, error) {
	if s.CountsFn != nil {
		return s.CountsFn(ctx, now)
	}
	return &domain.OrderCounts{}, nil
}

func (s *stubOrderRepo) LocationRollup(ctx context.Context) ([]domain.LocationCount, error) {
	if s.LocationRollupFn != nil {
		return s.LocationRollupFn(ctx)
	}
	return nil, nil
}

func (s *stubOrderRepo) RemoveReconciled(ctx context.Context) (int64, error) {
	if s.RemoveReconciledFn != nil {
		return s.RemoveReconciledFn(ctx)
	}
	return 0, nil
}

type stubCatalog struct {
	FindByCardIDFn func(ctx context.Context, cardID string) (*domain.CardSpec, error)
}

func (s *stubCatalog) FindByCardID(ctx context.Context, cardID string) (*domain.CardSpec, error) {
	if s.FindByCardIDFn != nil {
		return s.FindByCardIDFn(ctx, cardID)
	}
	return nil, nil
}

type stubRecorder struct {
	requested  int
	dispatched int
	delivered  int
	cancelled  int
	duplicates int
}

func (s *stubRecorder) RecordOrderRequested(string)          { s.requested++ }
func (s *stubRecorder) RecordOrderDispatched()               { s.dispatched++ }
func (s *stubRecorder) RecordOrderDelivered(bool, int, bool) { s.delivered++ }
func (s *stubRecorder) RecordOrderCancelled()                { s.cancelled++ }
func (s *stubRecorder) RecordDuplicateScan()                 { s.duplicates++ }

func testCard() *domain.CardSpec {
	return &domain.CardSpec{
		CardID:           "KB-0042",
		PartNumber:       "PN-1138",
		Description:      "Tornillo M8",
		Location:         "Linea 1",
		Zone:             "Zona A",
		StandardPack:     24,
		ComplexityWeight: 3,
		TargetLeadTime:   30,
		StdOpTime:        10,
		Active:           true,
	}
}

func newTestService(repo domain.OrderRepository, catalog domain.CardCatalog, recorder *stubRecorder) *ReplenishmentService {
	logger := logging.New(logging.DefaultConfig("test"))
	guard := NewDuplicateGuard(repo, logger)
	return NewReplenishmentService(repo, catalog, guard, recorder, logger)
}

func pendingOrder() *domain.Order {
	return domain.NewOrder("ord-1", testCard(), "Produccion")
}

func inTransitOrder(t *testing.T) *domain.Order {
	t.Helper()
	order := pendingOrder()
	if err := order.Dispatch("Luis"); err != nil {
		t.Fatalf("unexpected dispatch err: %v", err)
	}
	return order
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code)
	}
}

func TestScanCardUnknownCard(t *testing.T) {
	service := newTestService(&stubOrderRepo{}, &stubCatalog{}, &stubRecorder{})

	_, err := service.ScanCard(context.Background(), ScanCardCommand{CardID: "KB-MISSING"})
	assertAppErrorCode(t, err, apperrors.CodeUnknownCard)
}

func TestScanCardCreatesOrder(t *testing.T) {
	var created *domain.Order
	repo := &stubOrderRepo{
		CreateFn: func(_ context.Context, order *domain.Order) error {
			created = order
			return nil
		},
	}
	catalog := &stubCatalog{
		FindByCardIDFn: func(_ context.Context, _ string) (*domain.CardSpec, error) {
			return testCard(), nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, catalog, recorder)

	result, err := service.ScanCard(context.Background(), ScanCardCommand{CardID: "KB-0042"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Result != ScanResultCreated {
		t.Fatalf("expected result %s, got %s", ScanResultCreated, result.Result)
	}
	if created == nil {
		t.Fatal("expected order to be persisted")
	}
	if created.Status != domain.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", created.Status)
	}
	if created.RequestedBy != domain.DefaultRequestedBy {
		t.Fatalf("expected default requester, got %s", created.RequestedBy)
	}
	if result.Order.OrderID == "" {
		t.Fatal("expected a generated order id")
	}
	if recorder.requested != 1 {
		t.Fatalf("expected 1 requested metric, got %d", recorder.requested)
	}
}

func TestScanCardAlreadyRequested(t *testing.T) {
	existing := pendingOrder()
	repo := &stubOrderRepo{
		FindActiveByCardFn: func(_ context.Context, _ string) ([]*domain.Order, error) {
			return []*domain.Order{existing}, nil
		},
		CreateFn: func(_ context.Context, _ *domain.Order) error {
			t.Fatal("scan must not create a second active order")
			return nil
		},
	}
	catalog := &stubCatalog{
		FindByCardIDFn: func(_ context.Context, _ string) (*domain.CardSpec, error) {
			return testCard(), nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, catalog, recorder)

	result, err := service.ScanCard(context.Background(), ScanCardCommand{CardID: "KB-0042"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Result != ScanResultAlreadyRequested {
		t.Fatalf("expected result %s, got %s", ScanResultAlreadyRequested, result.Result)
	}
	if result.Order.OrderID != existing.OrderID {
		t.Fatalf("expected existing order %s, got %s", existing.OrderID, result.Order.OrderID)
	}
	if recorder.duplicates != 1 {
		t.Fatalf("expected 1 duplicate scan metric, got %d", recorder.duplicates)
	}
}

func TestScanCardMultipleActiveReturnsEarliest(t *testing.T) {
	first := pendingOrder()
	second := domain.NewOrder("ord-2", testCard(), "Produccion")
	repo := &stubOrderRepo{
		FindActiveByCardFn: func(_ context.Context, _ string) ([]*domain.Order, error) {
			return []*domain.Order{first, second}, nil
		},
	}
	catalog := &stubCatalog{
		FindByCardIDFn: func(_ context.Context, _ string) (*domain.CardSpec, error) {
			return testCard(), nil
		},
	}
	service := newTestService(repo, catalog, &stubRecorder{})

	result, err := service.ScanCard(context.Background(), ScanCardCommand{CardID: "KB-0042"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Order.OrderID != first.OrderID {
		t.Fatalf("expected earliest order %s, got %s", first.OrderID, result.Order.OrderID)
	}
}

func TestScanCardDeliversInTransitOrder(t *testing.T) {
	existing := inTransitOrder(t)
	var completed *domain.Order
	repo := &stubOrderRepo{
		FindActiveByCardFn: func(_ context.Context, _ string) ([]*domain.Order, error) {
			return []*domain.Order{existing}, nil
		},
		CompleteDeliveryFn: func(_ context.Context, order *domain.Order) error {
			completed = order
			return nil
		},
	}
	catalog := &stubCatalog{
		FindByCardIDFn: func(_ context.Context, _ string) (*domain.CardSpec, error) {
			return testCard(), nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, catalog, recorder)

	result, err := service.ScanCard(context.Background(), ScanCardCommand{CardID: "KB-0042"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Result != ScanResultDelivered {
		t.Fatalf("expected result %s, got %s", ScanResultDelivered, result.Result)
	}
	if completed == nil {
		t.Fatal("expected delivery to be persisted")
	}
	if completed.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", completed.Status)
	}
	// A scan without operator credits the dispatcher
	if completed.DeliveredBy != "Luis" {
		t.Fatalf("expected delivery credited to Luis, got %s", completed.DeliveredBy)
	}
	if completed.Metrics == nil {
		t.Fatal("expected delivery metrics to be computed")
	}
	if recorder.delivered != 1 {
		t.Fatalf("expected 1 delivered metric, got %d", recorder.delivered)
	}
}

func TestScanCardLostCreateRaceReportsWinner(t *testing.T) {
	winner := pendingOrder()
	calls := 0
	repo := &stubOrderRepo{
		FindActiveByCardFn: func(_ context.Context, _ string) ([]*domain.Order, error) {
			calls++
			if calls == 1 {
				// Nothing active at scan time, the concurrent scan lands after
				return nil, nil
			}
			return []*domain.Order{winner}, nil
		},
		CreateFn: func(_ context.Context, _ *domain.Order) error {
			return domain.ErrDuplicateActiveOrder
		},
	}
	catalog := &stubCatalog{
		FindByCardIDFn: func(_ context.Context, _ string) (*domain.CardSpec, error) {
			return testCard(), nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, catalog, recorder)

	result, err := service.ScanCard(context.Background(), ScanCardCommand{CardID: "KB-0042"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Result != ScanResultAlreadyRequested {
		t.Fatalf("expected result %s, got %s", ScanResultAlreadyRequested, result.Result)
	}
	if result.Order.OrderID != winner.OrderID {
		t.Fatalf("expected winning order %s, got %s", winner.OrderID, result.Order.OrderID)
	}
	if recorder.duplicates != 1 {
		t.Fatalf("expected 1 duplicate scan metric, got %d", recorder.duplicates)
	}
}

func TestDispatchOrder(t *testing.T) {
	order := pendingOrder()
	var expectedGuard domain.OrderStatus
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
		TransitionFn: func(_ context.Context, _ *domain.Order, expected domain.OrderStatus) error {
			expectedGuard = expected
			return nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, &stubCatalog{}, recorder)

	dto, err := service.DispatchOrder(context.Background(), DispatchOrderCommand{OrderID: "ord-1", Operator: "Luis"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if dto.Status != string(domain.OrderStatusInTransit) {
		t.Fatalf("expected IN_TRANSIT, got %s", dto.Status)
	}
	if dto.TakenBy != "Luis" {
		t.Fatalf("expected taken by Luis, got %s", dto.TakenBy)
	}
	if expectedGuard != domain.OrderStatusPending {
		t.Fatalf("expected transition guarded on PENDING, got %s", expectedGuard)
	}
	if recorder.dispatched != 1 {
		t.Fatalf("expected 1 dispatched metric, got %d", recorder.dispatched)
	}
}

func TestDispatchOrderNotFound(t *testing.T) {
	service := newTestService(&stubOrderRepo{}, &stubCatalog{}, &stubRecorder{})

	_, err := service.DispatchOrder(context.Background(), DispatchOrderCommand{OrderID: "ord-missing"})
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestDispatchOrderAlreadyInTransit(t *testing.T) {
	order := inTransitOrder(t)
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	_, err := service.DispatchOrder(context.Background(), DispatchOrderCommand{OrderID: "ord-1", Operator: "Luis"})
	assertAppErrorCode(t, err, apperrors.CodeInvalidTransition)
}

func TestDispatchOrderLosesTransitionRace(t *testing.T) {
	order := pendingOrder()
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
		TransitionFn: func(_ context.Context, _ *domain.Order, _ domain.OrderStatus) error {
			return domain.ErrTransitionConflict
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	_, err := service.DispatchOrder(context.Background(), DispatchOrderCommand{OrderID: "ord-1", Operator: "Luis"})
	assertAppErrorCode(t, err, apperrors.CodeInvalidTransition)
}

func TestDeliverOrder(t *testing.T) {
	order := inTransitOrder(t)
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, &stubCatalog{}, recorder)

	dto, err := service.DeliverOrder(context.Background(), DeliverOrderCommand{OrderID: "ord-1", Operator: "Pedro"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if dto.Status != string(domain.OrderStatusDelivered) {
		t.Fatalf("expected DELIVERED, got %s", dto.Status)
	}
	if dto.DeliveredBy != "Pedro" {
		t.Fatalf("expected delivered by Pedro, got %s", dto.DeliveredBy)
	}
	if dto.Metrics == nil {
		t.Fatal("expected delivery metrics on the response")
	}
	if recorder.delivered != 1 {
		t.Fatalf("expected 1 delivered metric, got %d", recorder.delivered)
	}
}

func TestDeliverOrderPendingRejected(t *testing.T) {
	order := pendingOrder()
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	_, err := service.DeliverOrder(context.Background(), DeliverOrderCommand{OrderID: "ord-1", Operator: "Pedro"})
	assertAppErrorCode(t, err, apperrors.CodeInvalidTransition)
}

func TestDeliverOrderMissingDispatchTimestamp(t *testing.T) {
	order := pendingOrder()
	order.Status = domain.OrderStatusInTransit
	order.DispatchedAt = nil
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	_, err := service.DeliverOrder(context.Background(), DeliverOrderCommand{OrderID: "ord-1", Operator: "Pedro"})
	assertAppErrorCode(t, err, apperrors.CodeIncompleteRecord)
}

func TestCancelOrderKeepsLastStatus(t *testing.T) {
	order := inTransitOrder(t)
	var expectedGuard domain.OrderStatus
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
		TransitionFn: func(_ context.Context, _ *domain.Order, expected domain.OrderStatus) error {
			expectedGuard = expected
			return nil
		},
	}
	recorder := &stubRecorder{}
	service := newTestService(repo, &stubCatalog{}, recorder)

	dto, err := service.CancelOrder(context.Background(), CancelOrderCommand{OrderID: "ord-1", Reason: "tarjeta danada"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if dto.Status != string(domain.OrderStatusCancelled) {
		t.Fatalf("expected CANCELLED, got %s", dto.Status)
	}
	if dto.LastStatus != string(domain.OrderStatusInTransit) {
		t.Fatalf("expected last status IN_TRANSIT, got %s", dto.LastStatus)
	}
	if expectedGuard != domain.OrderStatusInTransit {
		t.Fatalf("expected transition guarded on IN_TRANSIT, got %s", expectedGuard)
	}
	if recorder.cancelled != 1 {
		t.Fatalf("expected 1 cancelled metric, got %d", recorder.cancelled)
	}
}

func TestCancelOrderAlreadyDelivered(t *testing.T) {
	order := inTransitOrder(t)
	if err := order.Deliver("Pedro"); err != nil {
		t.Fatalf("unexpected deliver err: %v", err)
	}
	repo := &stubOrderRepo{
		FindByOrderIDFn: func(_ context.Context, _ string) (*domain.Order, error) {
			return order, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	_, err := service.CancelOrder(context.Background(), CancelOrderCommand{OrderID: "ord-1"})
	assertAppErrorCode(t, err, apperrors.CodeInvalidTransition)
}

func TestListActiveOrdersInvalidStatusFilter(t *testing.T) {
	service := newTestService(&stubOrderRepo{}, &stubCatalog{}, &stubRecorder{})

	_, err := service.ListActiveOrders(context.Background(), ListActiveOrdersQuery{Status: "DELIVERED"})
	assertAppErrorCode(t, err, apperrors.CodeValidationError)
}

func TestListActiveOrdersPaginates(t *testing.T) {
	orders := []*domain.Order{pendingOrder()}
	var gotFilter domain.ActiveOrderFilter
	repo := &stubOrderRepo{
		FindActiveFn: func(_ context.Context, filter domain.ActiveOrderFilter) ([]*domain.Order, int64, error) {
			gotFilter = filter
			return orders, 41, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	page, err := service.ListActiveOrders(context.Background(), ListActiveOrdersQuery{
		Status:   string(domain.OrderStatusPending),
		Location: "Linea 1",
		Page:     2,
		PageSize: 20,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotFilter.Status != domain.OrderStatusPending || gotFilter.Location != "Linea 1" {
		t.Fatalf("unexpected filter: %+v", gotFilter)
	}
	if page.TotalItems != 41 || page.TotalPages != 3 {
		t.Fatalf("expected 41 items over 3 pages, got %d over %d", page.TotalItems, page.TotalPages)
	}
	if len(page.Data) != 1 {
		t.Fatalf("expected 1 order in page, got %d", len(page.Data))
	}
}

func TestKPIReportDegradesWhenStoreUnreadable(t *testing.T) {
	repo := &stubOrderRepo{
		FindCompletedSinceFn: func(_ context.Context, _ time.Time) ([]*domain.Order, error) {
			return nil, errors.New("connection reset")
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	report, err := service.KPIReport(context.Background(), KPIReportQuery{})
	if err != nil {
		t.Fatalf("degraded report must not error, got %v", err)
	}
	if !report.Degraded {
		t.Fatal("expected degraded flag")
	}
	if report.TotalDeliveries != 0 {
		t.Fatalf("expected empty report, got %d deliveries", report.TotalDeliveries)
	}
}

func TestKPIReportBuildsFromCompletedOrders(t *testing.T) {
	order := inTransitOrder(t)
	if err := order.Deliver("Pedro"); err != nil {
		t.Fatalf("unexpected deliver err: %v", err)
	}
	var gotSince time.Time
	repo := &stubOrderRepo{
		FindCompletedSinceFn: func(_ context.Context, since time.Time) ([]*domain.Order, error) {
			gotSince = since
			return []*domain.Order{order}, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	since := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	report, err := service.KPIReport(context.Background(), KPIReportQuery{Since: since})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !gotSince.Equal(since) {
		t.Fatalf("expected window start %v, got %v", since, gotSince)
	}
	if report.TotalDeliveries != 1 {
		t.Fatalf("expected 1 delivery, got %d", report.TotalDeliveries)
	}
	if len(report.OperatorRanking) != 1 || report.OperatorRanking[0].Operator != "Pedro" {
		t.Fatalf("unexpected ranking: %+v", report.OperatorRanking)
	}
}

func TestStats(t *testing.T) {
	repo := &stubOrderRepo{
		CountsFn: func(_ context.Context, _ time.Time) (*domain.OrderCounts, error) {
			return &domain.OrderCounts{Pending: 3, InTransit: 2, DeliveredToday: 7}, nil
		},
	}
	service := newTestService(repo, &stubCatalog{}, &stubRecorder{})

	counts, err := service.Stats(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if counts.Pending != 3 || counts.InTransit != 2 || counts.DeliveredToday != 7 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
