package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/storefront/internal/domain"
)

// PostgresSubscriptionRepository implements domain.SubscriptionRepository
// using PostgreSQL
type PostgresSubscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSubscriptionRepository creates a new subscription repository
func NewPostgresSubscriptionRepository(db *sql.DB, logger *slog.Logger) *PostgresSubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSubscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `id, store_id, plan_id, processor_subscription_id,
	processor_customer_id, status, current_period_start, current_period_end,
	cancel_at_period_end, trial_ends_at, last_payment_at, canceled_at,
	created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	err := row.Scan(
		&s.ID, &s.StoreID, &s.PlanID, &s.ProcessorSubscriptionID,
		&s.ProcessorCustomerID, &s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd, &s.TrialEndsAt, &s.LastPaymentAt, &s.CanceledAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create creates a new subscription
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	query := `
		INSERT INTO subscriptions (id, store_id, plan_id, processor_subscription_id,
			processor_customer_id, status, current_period_start, current_period_end,
			cancel_at_period_end, trial_ends_at, last_payment_at, canceled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		sub.ID, sub.StoreID, sub.PlanID, sub.ProcessorSubscriptionID,
		sub.ProcessorCustomerID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.TrialEndsAt, sub.LastPaymentAt, sub.CanceledAt,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetByID retrieves a subscription by ID
func (r *PostgresSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubscriptionRequired
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return s, nil
}

// GetCurrentByStore returns the store's newest subscription that still
// counts toward access decisions
func (r *PostgresSubscriptionRepository) GetCurrentByStore(ctx context.Context, storeID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE store_id = $1 AND status IN ('ACTIVE', 'TRIALING', 'PAST_DUE')
		ORDER BY created_at DESC
		LIMIT 1
	`
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, storeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubscriptionRequired
		}
		return nil, fmt.Errorf("failed to get current subscription: %w", err)
	}
	return s, nil
}

// GetByProcessorID retrieves a subscription by the processor's id for it
func (r *PostgresSubscriptionRepository) GetByProcessorID(ctx context.Context, processorSubscriptionID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE processor_subscription_id = $1`
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, processorSubscriptionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubscriptionRequired
		}
		return nil, fmt.Errorf("failed to get subscription by processor id: %w", err)
	}
	return s, nil
}

// Update updates an existing subscription
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, processor_subscription_id = $2, processor_customer_id = $3,
			status = $4, current_period_start = $5, current_period_end = $6,
			cancel_at_period_end = $7, trial_ends_at = $8, last_payment_at = $9,
			canceled_at = $10, updated_at = now()
		WHERE id = $11
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		sub.PlanID, sub.ProcessorSubscriptionID, sub.ProcessorCustomerID,
		sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.TrialEndsAt, sub.LastPaymentAt,
		sub.CanceledAt, sub.ID,
	).Scan(&sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSubscriptionRequired
		}
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}
