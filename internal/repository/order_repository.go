package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/storefront/internal/domain"
)

// PostgresOrderRepository implements domain.OrderRepository using
// PostgreSQL. Order commits run inside InTx so the stock decrement and the
// order rows land atomically.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresOrderRepository creates a new order repository
func NewPostgresOrderRepository(db *sql.DB, logger *slog.Logger) *PostgresOrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOrderRepository{db: db, logger: logger}
}

// InTx runs fn inside a single transaction. Any error from fn rolls the
// whole unit back.
func (r *PostgresOrderRepository) InTx(ctx context.Context, fn func(tx domain.OrderTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&orderTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			r.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// orderTx implements domain.OrderTx on a live *sql.Tx.
type orderTx struct {
	tx *sql.Tx
}

// ProductsForUpdate locks and returns the available products so concurrent
// commits against the same rows serialize.
func (t *orderTx) ProductsForUpdate(ctx context.Context, storeID string, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE store_id = $1 AND is_available AND id = ANY($2)
		FOR UPDATE
	`
	rows, err := t.tx.QueryContext(ctx, query, storeID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
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

func (t *orderTx) OptionsByIDs(ctx context.Context, storeID string, ids []string) (map[string]*domain.CustomizationOption, error) {
	return fetchOptions(ctx, t.tx, storeID, ids)
}

// DecrementStock subtracts qty guarded by stock >= qty. A zero-row update
// means another transaction got there first; the caller rolls back.
func (t *orderTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock IS NOT NULL AND stock >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		var available int
		if err := t.tx.QueryRowContext(ctx,
			`SELECT COALESCE(stock, 0) FROM products WHERE id = $1`, productID,
		).Scan(&available); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read stock: %w", err)
		}
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	return nil
}

// InsertOrder writes the order along with its items and their
// customization snapshots.
func (t *orderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, store_id, user_id, status, total_cents, payment_method,
			delivery_address, platform_fee_cents, merchant_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, o.ID, o.StoreID, o.UserID, o.Status, o.TotalCents, o.PaymentMethod,
		o.DeliveryAddress, o.PlatformFeeCents, o.MerchantCents,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = o.ID
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity,
				price_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity,
			item.PriceCents, item.SubtotalCents)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		for j := range item.Customizations {
			c := &item.Customizations[j]
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.OrderItemID = item.ID
			_, err := t.tx.ExecContext(ctx, `
				INSERT INTO order_item_customizations (id, order_item_id, option_id, name,
					price_cents, quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, c.ID, c.OrderItemID, c.OptionID, c.Name, c.PriceCents, c.Quantity)
			if err != nil {
				return fmt.Errorf("failed to insert order item customization: %w", err)
			}
		}
	}
	return nil
}

const orderColumns = `id, store_id, user_id, status, total_cents, payment_method,
	delivery_address, platform_fee_cents, merchant_cents, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.StoreID, &o.UserID, &o.Status, &o.TotalCents, &o.PaymentMethod,
		&o.DeliveryAddress, &o.PlatformFeeCents, &o.MerchantCents, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetByID retrieves an order with its items, scoped to a store
func (r *PostgresOrderRepository) GetByID(ctx context.Context, storeID, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE store_id = $1 AND id = $2`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, storeID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if err := r.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByStore returns a store's orders, newest first
func (r *PostgresOrderRepository) ListByStore(ctx context.Context, storeID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE store_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, storeID)
}

// ListByUser returns a user's orders within a store, newest first
func (r *PostgresOrderRepository) ListByUser(ctx context.Context, storeID, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE store_id = $1 AND user_id = $2 ORDER BY created_at DESC`
	return r.list(ctx, query, storeID, userID)
}

func (r *PostgresOrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresOrderRepository) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price_cents, subtotal_cents
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	var itemIDs []string
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.PriceCents, &item.SubtotalCents); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
		itemIDs = append(itemIDs, item.ID)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	customizations := make(map[string][]domain.OrderItemCustomization)
	if len(itemIDs) > 0 {
		crows, err := r.db.QueryContext(ctx, `
			SELECT id, order_item_id, option_id, name, price_cents, quantity
			FROM order_item_customizations
			WHERE order_item_id = ANY($1)
		`, pq.Array(itemIDs))
		if err != nil {
			return fmt.Errorf("failed to load order item customizations: %w", err)
		}
		defer crows.Close()

		for crows.Next() {
			var c domain.OrderItemCustomization
			if err := crows.Scan(&c.ID, &c.OrderItemID, &c.OptionID, &c.Name, &c.PriceCents, &c.Quantity); err != nil {
				return fmt.Errorf("failed to scan order item customization: %w", err)
			}
			customizations[c.OrderItemID] = append(customizations[c.OrderItemID], c)
		}
		if err := crows.Err(); err != nil {
			return err
		}
	}

	for _, item := range items {
		item.Customizations = customizations[item.ID]
		o := byID[item.OrderID]
		o.Items = append(o.Items, item)
	}
	return nil
}

// UpdateStatus moves an order to a new status. Transition validity is
// checked by the service before this is called.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, storeID, id string, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = now()
		WHERE store_id = $2 AND id = $3
	`, status, storeID, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// SetPaymentSplit records the platform fee split computed at payment time
func (r *PostgresOrderRepository) SetPaymentSplit(ctx context.Context, storeID, id string, platformFee, merchant int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET platform_fee_cents = $1, merchant_cents = $2, updated_at = now()
		WHERE store_id = $3 AND id = $4
	`, platformFee, merchant, storeID, id)
	if err != nil {
		return fmt.Errorf("failed to set payment split: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// CountInPeriod counts a store's orders created in [start, end)
func (r *PostgresOrderRepository) CountInPeriod(ctx context.Context, storeID string, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
	`, storeID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}
