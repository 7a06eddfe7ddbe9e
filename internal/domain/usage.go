package domain

import (
	"context"
	"time"
)

// PlanUsage is a per-store, per-billing-period counter snapshot written by
// the reconciliation worker. Derived data only: it is recomputable from
// the primary entities at any time and is never consulted for gating.
type PlanUsage struct {
	ID           string
	StoreID      string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	ProductCount int
	OrderCount   int
	StorageKB    int64
	ComputedAt   time.Time
}

// UsageRepository defines data access for usage snapshots.
type UsageRepository interface {
	// Upsert replaces the snapshot for {store, period start}.
	Upsert(ctx context.Context, usage *PlanUsage) error
	GetByStore(ctx context.Context, storeID string, periodStart time.Time) (*PlanUsage, error)
}
