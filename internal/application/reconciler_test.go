package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
	sharedtesting "github.com/kanban-platform/replenishment-service/pkg/testing"
)

func TestReconcilerRemovesStaleActiveOrders(t *testing.T) {
	removed := 0
	repo := &stubOrderRepo{
		RemoveReconciledFn: func(_ context.Context) (int64, error) {
			removed++
			return 2, nil
		},
		CountsFn: func(_ context.Context, _ time.Time) (*domain.OrderCounts, error) {
			return &domain.OrderCounts{Pending: 1, InTransit: 1}, nil
		},
	}
	logger := logging.New(logging.DefaultConfig("test"))
	reconciler := NewReconciler(repo, nil, logger, nil)

	reconciler.reconcile(context.Background())

	if removed != 1 {
		t.Fatalf("expected one repair pass, got %d", removed)
	}
}

func TestReconcilerStartStop(t *testing.T) {
	var passes atomic.Int64
	repo := &stubOrderRepo{
		RemoveReconciledFn: func(_ context.Context) (int64, error) {
			passes.Add(1)
			return 0, nil
		},
	}
	logger := logging.New(logging.DefaultConfig("test"))
	reconciler := NewReconciler(repo, nil, logger, &ReconcilerConfig{Interval: 10 * time.Millisecond})

	if err := reconciler.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start err: %v", err)
	}
	if err := reconciler.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail")
	}

	sharedtesting.Eventually(t, time.Second, func() bool {
		return passes.Load() > 0
	}, "reconciler never ran a pass")

	if err := reconciler.Stop(); err != nil {
		t.Fatalf("unexpected stop err: %v", err)
	}
	if err := reconciler.Stop(); err == nil {
		t.Fatal("expected second stop to fail")
	}
}
