package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the core tables when they do not exist yet.
// Quotas and feature flags live in a jsonb column validated in code
// (domain.PlanFeatures), not in check constraints.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'CUSTOMER',
			store_id UUID,
			processor_customer_id TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS stores (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			subdomain TEXT NOT NULL UNIQUE,
			custom_domain TEXT,
			owner_user_id UUID NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			processor_account_id TEXT NOT NULL DEFAULT '',
			payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			charges_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS stores_custom_domain_idx
			ON stores (custom_domain) WHERE custom_domain IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS subscription_plans (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			interval TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			features JSONB NOT NULL,
			processor_price_id TEXT NOT NULL DEFAULT '',
			processor_product_id TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			store_id UUID NOT NULL REFERENCES stores(id),
			plan_id UUID NOT NULL REFERENCES subscription_plans(id),
			processor_subscription_id TEXT NOT NULL DEFAULT '',
			processor_customer_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			current_period_start TIMESTAMPTZ NOT NULL,
			current_period_end TIMESTAMPTZ NOT NULL,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			trial_ends_at TIMESTAMPTZ,
			last_payment_at TIMESTAMPTZ,
			canceled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS subscriptions_store_idx ON subscriptions (store_id, created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_one_active_idx
			ON subscriptions (store_id) WHERE status IN ('ACTIVE', 'TRIALING')`,
		`CREATE INDEX IF NOT EXISTS subscriptions_processor_idx ON subscriptions (processor_subscription_id)`,
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			store_id UUID NOT NULL REFERENCES stores(id),
			category_id UUID,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			stock INTEGER,
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT stock_non_negative CHECK (stock IS NULL OR stock >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS products_store_idx ON products (store_id)`,
		`CREATE TABLE IF NOT EXISTS photos (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS customization_options (
			id UUID PRIMARY KEY,
			customization_id UUID NOT NULL,
			store_id UUID NOT NULL REFERENCES stores(id),
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			store_id UUID NOT NULL REFERENCES stores(id),
			user_id UUID NOT NULL,
			status TEXT NOT NULL,
			total_cents BIGINT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			delivery_address TEXT NOT NULL DEFAULT '',
			platform_fee_cents BIGINT NOT NULL DEFAULT 0,
			merchant_cents BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS orders_store_created_idx ON orders (store_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price_cents BIGINT NOT NULL,
			subtotal_cents BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_item_customizations (
			id UUID PRIMARY KEY,
			order_item_id UUID NOT NULL REFERENCES order_items(id) ON DELETE CASCADE,
			option_id UUID NOT NULL,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			quantity INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS plan_usage (
			id UUID PRIMARY KEY,
			store_id UUID NOT NULL REFERENCES stores(id),
			period_start TIMESTAMPTZ NOT NULL,
			period_end TIMESTAMPTZ NOT NULL,
			product_count INTEGER NOT NULL,
			order_count INTEGER NOT NULL,
			storage_kb BIGINT NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL,
			UNIQUE (store_id, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			event_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
