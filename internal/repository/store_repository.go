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

// PostgresStoreRepository implements domain.StoreRepository using PostgreSQL
type PostgresStoreRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStoreRepository creates a new store repository
func NewPostgresStoreRepository(db *sql.DB, logger *slog.Logger) *PostgresStoreRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStoreRepository{db: db, logger: logger}
}

const storeColumns = `id, name, subdomain, COALESCE(custom_domain, ''), owner_user_id,
	is_active, processor_account_id, payouts_enabled, charges_enabled, created_at, updated_at`

func scanStore(row interface{ Scan(...any) error }) (*domain.Store, error) {
	s := &domain.Store{}
	err := row.Scan(
		&s.ID, &s.Name, &s.Subdomain, &s.CustomDomain, &s.OwnerUserID,
		&s.IsActive, &s.ProcessorAccountID, &s.PayoutsEnabled, &s.ChargesEnabled,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create creates a new store
func (r *PostgresStoreRepository) Create(ctx context.Context, store *domain.Store) error {
	if store.ID == "" {
		store.ID = uuid.NewString()
	}
	query := `
		INSERT INTO stores (id, name, subdomain, custom_domain, owner_user_id, is_active,
			processor_account_id, payouts_enabled, charges_enabled)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		store.ID, store.Name, store.Subdomain, store.CustomDomain, store.OwnerUserID,
		store.IsActive, store.ProcessorAccountID, store.PayoutsEnabled, store.ChargesEnabled,
	).Scan(&store.CreatedAt, &store.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSubdomainTaken
		}
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

// GetByID retrieves a store by ID
func (r *PostgresStoreRepository) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	return r.getOne(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
}

// GetBySubdomain retrieves a store by its subdomain label
func (r *PostgresStoreRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Store, error) {
	return r.getOne(ctx, `SELECT `+storeColumns+` FROM stores WHERE subdomain = $1`, subdomain)
}

// GetByCustomDomain retrieves a store by its verified custom domain
func (r *PostgresStoreRepository) GetByCustomDomain(ctx context.Context, customDomain string) (*domain.Store, error) {
	return r.getOne(ctx, `SELECT `+storeColumns+` FROM stores WHERE custom_domain = $1`, customDomain)
}

// GetByProcessorAccountID retrieves a store by its connected payment account
func (r *PostgresStoreRepository) GetByProcessorAccountID(ctx context.Context, accountID string) (*domain.Store, error) {
	return r.getOne(ctx, `SELECT `+storeColumns+` FROM stores WHERE processor_account_id = $1`, accountID)
}

func (r *PostgresStoreRepository) getOne(ctx context.Context, query string, arg any) (*domain.Store, error) {
	s, err := scanStore(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return s, nil
}

// Update updates an existing store
func (r *PostgresStoreRepository) Update(ctx context.Context, store *domain.Store) error {
	query := `
		UPDATE stores
		SET name = $1, subdomain = $2, custom_domain = NULLIF($3, ''), is_active = $4,
			processor_account_id = $5, payouts_enabled = $6, charges_enabled = $7,
			updated_at = now()
		WHERE id = $8
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		store.Name, store.Subdomain, store.CustomDomain, store.IsActive,
		store.ProcessorAccountID, store.PayoutsEnabled, store.ChargesEnabled, store.ID,
	).Scan(&store.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTenantNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrSubdomainTaken
		}
		return fmt.Errorf("failed to update store: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a store and scrambles its subdomain so the label
// can be reused by a new signup. Rows are never hard-deleted.
func (r *PostgresStoreRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE stores
		SET is_active = false,
			subdomain = subdomain || '-deleted-' || substr(md5(random()::text), 1, 8),
			custom_domain = NULL,
			updated_at = now()
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate store: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

// List returns all stores
func (r *PostgresStoreRepository) List(ctx context.Context) ([]*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var out []*domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
