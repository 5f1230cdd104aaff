package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kanban-platform/replenishment-service/internal/domain"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
	"github.com/kanban-platform/replenishment-service/pkg/metrics"
)

// Reconciler periodically repairs the active store and refreshes the
// active order gauges. Orders that reached the completed store but
// still have a stale active record (a crash between the two writes)
// are removed so the duplicate guard stays truthful.
type Reconciler struct {
	orderRepo domain.OrderRepository
	metrics   *metrics.Metrics
	logger    *logging.Logger
	interval  time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	Interval time.Duration
}

// DefaultReconcilerConfig returns default configuration
func DefaultReconcilerConfig() *ReconcilerConfig {
	return &ReconcilerConfig{
		Interval: 30 * time.Second,
	}
}

// NewReconciler creates a new reconciler
func NewReconciler(
	orderRepo domain.OrderRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
	config *ReconcilerConfig,
) *Reconciler {
	if config == nil {
		config = DefaultReconcilerConfig()
	}

	return &Reconciler{
		orderRepo: orderRepo,
		metrics:   m,
		logger:    logger.WithComponent("reconciler"),
		interval:  config.Interval,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start starts the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("Starting order reconciler", "interval", r.interval)

	go r.run(ctx)
	return nil
}

// Stop stops the reconciliation loop
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler not running")
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.stoppedCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.logger.Info("Order reconciler stopped")
	return nil
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reconcile(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			r.logger.Info("Reconciler context cancelled")
			return
		}
	}
}

// reconcile runs one repair and gauge refresh pass
func (r *Reconciler) reconcile(ctx context.Context) {
	repaired, err := r.orderRepo.RemoveReconciled(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Reconciliation pass failed")
	} else if repaired > 0 {
		r.logger.Warn("Removed stale active orders already completed", "count", repaired)
	}

	counts, err := r.orderRepo.Counts(ctx, time.Now())
	if err != nil {
		r.logger.WithError(err).Warn("Failed to refresh active order gauges")
		return
	}

	if r.metrics != nil {
		r.metrics.SetActiveOrders(string(domain.OrderStatusPending), int(counts.Pending))
		r.metrics.SetActiveOrders(string(domain.OrderStatusInTransit), int(counts.InTransit))
	}
}
