package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/observability/metrics"
	"github.com/yourorg/storefront/internal/service"
)

// UsageWorker periodically recomputes per-tenant usage counters from the
// primary entities into plan_usage snapshots. The snapshots are derived
// data for dashboards; the limit engine never reads them.
type UsageWorker struct {
	stores   domain.StoreRepository
	subs     domain.SubscriptionRepository
	products domain.ProductRepository
	orders   domain.OrderRepository
	usage    domain.UsageRepository
	logger   *slog.Logger
	interval time.Duration
}

// NewUsageWorker creates a new usage reconciliation worker
func NewUsageWorker(
	stores domain.StoreRepository,
	subs domain.SubscriptionRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	usage domain.UsageRepository,
	logger *slog.Logger,
	interval time.Duration,
) *UsageWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageWorker{
		stores:   stores,
		subs:     subs,
		products: products,
		orders:   orders,
		usage:    usage,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the reconciliation loop. It runs until ctx is canceled.
func (w *UsageWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("usage worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("usage worker stopped")
			return
		case <-ticker.C:
			w.reconcileAll(ctx)
		}
	}
}

// reconcileAll recomputes usage for every active store. One store failing
// does not stop the pass.
func (w *UsageWorker) reconcileAll(ctx context.Context) {
	stores, err := w.stores.List(ctx)
	if err != nil {
		w.logger.Error("failed to list stores", slog.String("error", err.Error()))
		metrics.ObserveUsageReconciliation("error")
		return
	}

	failed := 0
	for _, store := range stores {
		if !store.IsActive {
			continue
		}
		if err := w.reconcileStore(ctx, store); err != nil {
			failed++
			w.logger.Error("failed to reconcile store usage",
				slog.String("store_id", store.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if failed > 0 {
		metrics.ObserveUsageReconciliation("partial")
		return
	}
	metrics.ObserveUsageReconciliation("success")
}

// reconcileStore recomputes one store's counters for its current billing
// period. Stores without a current subscription use a calendar-month
// period so their dashboards still show usage.
func (w *UsageWorker) reconcileStore(ctx context.Context, store *domain.Store) error {
	periodStart, periodEnd := w.currentPeriod(ctx, store.ID)

	productCount, err := w.products.CountByStore(ctx, store.ID)
	if err != nil {
		return err
	}
	orderCount, err := w.orders.CountInPeriod(ctx, store.ID, periodStart, periodEnd)
	if err != nil {
		return err
	}
	photoCount, err := w.products.PhotoCountByStore(ctx, store.ID)
	if err != nil {
		return err
	}

	return w.usage.Upsert(ctx, &domain.PlanUsage{
		StoreID:      store.ID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		ProductCount: productCount,
		OrderCount:   orderCount,
		StorageKB:    int64(photoCount) * service.StorageKBPerPhoto,
		ComputedAt:   time.Now().UTC(),
	})
}

func (w *UsageWorker) currentPeriod(ctx context.Context, storeID string) (time.Time, time.Time) {
	if sub, err := w.subs.GetCurrentByStore(ctx, storeID); err == nil {
		return sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	}
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
