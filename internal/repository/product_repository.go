package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/storefront/internal/domain"
)

// PostgresProductRepository implements domain.ProductRepository using
// PostgreSQL. All queries are scoped by store_id; there is no way to read
// another store's catalog through this type.
type PostgresProductRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProductRepository creates a new product repository
func NewPostgresProductRepository(db *sql.DB, logger *slog.Logger) *PostgresProductRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProductRepository{db: db, logger: logger}
}

const productColumns = `id, store_id, COALESCE(category_id::text, ''), name, description,
	type, price_cents, stock, is_available, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID, &p.StoreID, &p.CategoryID, &p.Name, &p.Description,
		&p.Type, &p.PriceCents, &p.Stock, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create creates a new product
func (r *PostgresProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO products (id, store_id, category_id, name, description, type,
			price_cents, stock, is_available)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.StoreID, p.CategoryID, p.Name, p.Description, p.Type,
		p.PriceCents, p.Stock, p.IsAvailable,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID retrieves a product scoped to a store
func (r *PostgresProductRepository) GetByID(ctx context.Context, storeID, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE store_id = $1 AND id = $2`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, storeID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ProductUnavailableError{ProductID: id}
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// AvailableByIDs batch-fetches available products scoped to a store.
// Missing or unavailable ids are absent from the result map.
func (r *PostgresProductRepository) AvailableByIDs(ctx context.Context, storeID string, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE store_id = $1 AND is_available AND id = ANY($2)
	`
	rows, err := r.db.QueryContext(ctx, query, storeID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// OptionsByIDs batch-fetches customization options scoped to a store
func (r *PostgresProductRepository) OptionsByIDs(ctx context.Context, storeID string, ids []string) (map[string]*domain.CustomizationOption, error) {
	return fetchOptions(ctx, r.db, storeID, ids)
}

// Update updates an existing product
func (r *PostgresProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET category_id = NULLIF($1, '')::uuid, name = $2, description = $3, type = $4,
			price_cents = $5, stock = $6, is_available = $7, updated_at = now()
		WHERE store_id = $8 AND id = $9
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.CategoryID, p.Name, p.Description, p.Type,
		p.PriceCents, p.Stock, p.IsAvailable, p.StoreID, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ProductUnavailableError{ProductID: p.ID}
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// AddPhoto attaches a photo to a product, verifying through the join that
// the product belongs to the store
func (r *PostgresProductRepository) AddPhoto(ctx context.Context, storeID string, photo *domain.Photo) error {
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	query := `
		INSERT INTO photos (id, product_id, url)
		SELECT $1, p.id, $3
		FROM products p
		WHERE p.id = $2 AND p.store_id = $4
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		photo.ID, photo.ProductID, photo.URL, storeID,
	).Scan(&photo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ProductUnavailableError{ProductID: photo.ProductID}
		}
		return fmt.Errorf("failed to add photo: %w", err)
	}
	return nil
}

// CountByStore counts a store's products for quota checks
func (r *PostgresProductRepository) CountByStore(ctx context.Context, storeID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE store_id = $1`, storeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// PhotoCountByStore counts photos across a store's products, the input to
// the storage quota estimate
func (r *PostgresProductRepository) PhotoCountByStore(ctx context.Context, storeID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM photos ph
		JOIN products p ON p.id = ph.product_id
		WHERE p.store_id = $1
	`, storeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return n, nil
}

// ListByStore returns all of a store's products
func (r *PostgresProductRepository) ListByStore(ctx context.Context, storeID string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE store_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// fetchOptions is shared by the repository and the order transaction.
func fetchOptions(ctx context.Context, q querier, storeID string, ids []string) (map[string]*domain.CustomizationOption, error) {
	out := make(map[string]*domain.CustomizationOption, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT id, customization_id, store_id, name, price_cents, created_at
		FROM customization_options
		WHERE store_id = $1 AND id = ANY($2)
	`
	rows, err := q.QueryContext(ctx, query, storeID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customization options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o := &domain.CustomizationOption{}
		if err := rows.Scan(&o.ID, &o.CustomizationID, &o.StoreID, &o.Name, &o.PriceCents, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customization option: %w", err)
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}
