package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/observability/metrics"
)

// StorageKBPerPhoto is the flat per-photo storage estimate charged against
// the plan's storage quota. Usage accounting is an estimate, not a byte
// count.
const StorageKBPerPhoto = 512

// LimitService is the plan limit engine. Every check recomputes current
// usage from the primary entities; cached usage snapshots are never
// consulted for gating.
type LimitService struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	logger   *slog.Logger
}

// NewLimitService creates a new limit service
func NewLimitService(products domain.ProductRepository, orders domain.OrderRepository, logger *slog.Logger) *LimitService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LimitService{products: products, orders: orders, logger: logger}
}

// CheckProductCreate decides whether the tenant may add one more product.
func (s *LimitService) CheckProductCreate(ctx context.Context, tc *domain.TenantContext) (domain.Decision, error) {
	if tc.Plan == nil {
		return domain.Decision{}, domain.ErrSubscriptionRequired
	}
	limit := tc.Plan.Features.MaxProducts
	if limit == domain.Unlimited {
		return allow(domain.ResourceProducts, 0, limit), nil
	}
	current, err := s.products.CountByStore(ctx, tc.Store.ID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to count products: %w", err)
	}
	return s.decide(domain.ResourceProducts, current, limit), nil
}

// CheckOrderCreate decides whether the tenant may accept one more order in
// the current billing period.
func (s *LimitService) CheckOrderCreate(ctx context.Context, tc *domain.TenantContext) (domain.Decision, error) {
	if tc.Plan == nil || tc.Subscription == nil {
		return domain.Decision{}, domain.ErrSubscriptionRequired
	}
	limit := tc.Plan.Features.MaxOrders
	if limit == domain.Unlimited {
		return allow(domain.ResourceOrders, 0, limit), nil
	}
	sub := tc.Subscription
	current, err := s.orders.CountInPeriod(ctx, tc.Store.ID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to count orders: %w", err)
	}
	return s.decide(domain.ResourceOrders, current, limit), nil
}

// CheckStorage decides whether the tenant may add addPhotos more photos
// under the storage quota estimate.
func (s *LimitService) CheckStorage(ctx context.Context, tc *domain.TenantContext, addPhotos int) (domain.Decision, error) {
	if tc.Plan == nil {
		return domain.Decision{}, domain.ErrSubscriptionRequired
	}
	limitMB := tc.Plan.Features.MaxStorageMB
	if limitMB == domain.Unlimited {
		return allow(domain.ResourceStorage, 0, limitMB), nil
	}
	photos, err := s.products.PhotoCountByStore(ctx, tc.Store.ID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to count photos: %w", err)
	}
	currentKB := (photos + addPhotos) * StorageKBPerPhoto
	limitKB := limitMB * 1024
	d := domain.Decision{
		Allowed:  currentKB <= limitKB,
		Resource: domain.ResourceStorage,
		Current:  currentKB,
		Limit:    limitKB,
	}
	if !d.Allowed {
		metrics.ObserveLimitDenial(string(domain.ResourceStorage))
		s.logger.Info("plan limit denied",
			slog.String("store_id", tc.Store.ID),
			slog.String("resource", string(domain.ResourceStorage)),
			slog.Int("current_kb", currentKB),
			slog.Int("limit_kb", limitKB),
		)
	}
	return d, nil
}

// Enforce converts a denial into a LimitExceededError; an allowed decision
// passes through as nil.
func Enforce(d domain.Decision) error {
	if d.Allowed {
		return nil
	}
	return &domain.LimitExceededError{Resource: d.Resource, Current: d.Current, Limit: d.Limit}
}

// decide admits one more unit of a counted resource when current < limit.
func (s *LimitService) decide(resource domain.ResourceClass, current, limit int) domain.Decision {
	d := domain.Decision{
		Allowed:  current < limit,
		Resource: resource,
		Current:  current,
		Limit:    limit,
	}
	if !d.Allowed {
		metrics.ObserveLimitDenial(string(resource))
		s.logger.Info("plan limit denied",
			slog.String("resource", string(resource)),
			slog.Int("current", current),
			slog.Int("limit", limit),
		)
	}
	return d
}

func allow(resource domain.ResourceClass, current, limit int) domain.Decision {
	return domain.Decision{Allowed: true, Resource: resource, Current: current, Limit: limit}
}
