package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/storefront/internal/domain"
)

// PostgresUsageRepository implements domain.UsageRepository using
// PostgreSQL. One snapshot row per {store, period start}.
type PostgresUsageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUsageRepository creates a new usage repository
func NewPostgresUsageRepository(db *sql.DB, logger *slog.Logger) *PostgresUsageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUsageRepository{db: db, logger: logger}
}

// Upsert replaces the snapshot for {store, period start}
func (r *PostgresUsageRepository) Upsert(ctx context.Context, usage *domain.PlanUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	query := `
		INSERT INTO plan_usage (id, store_id, period_start, period_end,
			product_count, order_count, storage_kb, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (store_id, period_start) DO UPDATE
		SET period_end = EXCLUDED.period_end,
			product_count = EXCLUDED.product_count,
			order_count = EXCLUDED.order_count,
			storage_kb = EXCLUDED.storage_kb,
			computed_at = EXCLUDED.computed_at
	`
	_, err := r.db.ExecContext(ctx, query,
		usage.ID, usage.StoreID, usage.PeriodStart, usage.PeriodEnd,
		usage.ProductCount, usage.OrderCount, usage.StorageKB, usage.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert usage snapshot: %w", err)
	}
	return nil
}

// GetByStore retrieves the snapshot for {store, period start}
func (r *PostgresUsageRepository) GetByStore(ctx context.Context, storeID string, periodStart time.Time) (*domain.PlanUsage, error) {
	u := &domain.PlanUsage{}
	query := `
		SELECT id, store_id, period_start, period_end, product_count, order_count,
			storage_kb, computed_at
		FROM plan_usage
		WHERE store_id = $1 AND period_start = $2
	`
	err := r.db.QueryRowContext(ctx, query, storeID, periodStart).Scan(
		&u.ID, &u.StoreID, &u.PeriodStart, &u.PeriodEnd,
		&u.ProductCount, &u.OrderCount, &u.StorageKB, &u.ComputedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUsageNotFound
		}
		return nil, fmt.Errorf("failed to get usage snapshot: %w", err)
	}
	return u, nil
}
