package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/storefront/internal/domain"
)

// PostgresPlanRepository implements domain.PlanRepository using PostgreSQL.
// Features are stored as jsonb and validated before they ever reach here.
type PostgresPlanRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPlanRepository creates a new plan repository
func NewPostgresPlanRepository(db *sql.DB, logger *slog.Logger) *PostgresPlanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPlanRepository{db: db, logger: logger}
}

// Create creates a new subscription plan
func (r *PostgresPlanRepository) Create(ctx context.Context, plan *domain.SubscriptionPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}
	query := `
		INSERT INTO subscription_plans (id, name, type, interval, price_cents, features,
			processor_price_id, processor_product_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		plan.ID, plan.Name, plan.Type, plan.Interval, plan.PriceCents, features,
		plan.ProcessorPriceID, plan.ProcessorProductID, plan.IsActive,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetByID retrieves a plan by ID
func (r *PostgresPlanRepository) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	query := `
		SELECT id, name, type, interval, price_cents, features,
			processor_price_id, processor_product_id, is_active, created_at, updated_at
		FROM subscription_plans
		WHERE id = $1
	`
	p, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// Update updates an existing plan
func (r *PostgresPlanRepository) Update(ctx context.Context, plan *domain.SubscriptionPlan) error {
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}
	query := `
		UPDATE subscription_plans
		SET name = $1, type = $2, interval = $3, price_cents = $4, features = $5,
			processor_price_id = $6, processor_product_id = $7, is_active = $8,
			updated_at = now()
		WHERE id = $9
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		plan.Name, plan.Type, plan.Interval, plan.PriceCents, features,
		plan.ProcessorPriceID, plan.ProcessorProductID, plan.IsActive, plan.ID,
	).Scan(&plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPlanNotFound
		}
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return nil
}

// ListActive returns all active plans ordered by price
func (r *PostgresPlanRepository) ListActive(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	query := `
		SELECT id, name, type, interval, price_cents, features,
			processor_price_id, processor_product_id, is_active, created_at, updated_at
		FROM subscription_plans
		WHERE is_active
		ORDER BY price_cents ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var out []*domain.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row interface{ Scan(...any) error }) (*domain.SubscriptionPlan, error) {
	p := &domain.SubscriptionPlan{}
	var features []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.Interval, &p.PriceCents, &features,
		&p.ProcessorPriceID, &p.ProcessorProductID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, fmt.Errorf("failed to decode plan features: %w", err)
	}
	return p, nil
}
