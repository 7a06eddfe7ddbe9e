package domain

import (
	"context"
	"time"
)

// Store is a tenant: a single merchant storefront and the unit of data
// isolation. Products, orders, subscriptions and usage counters all hang
// off a store.
type Store struct {
	ID           string // UUID
	Name         string
	Subdomain    string // unique, resolves <subdomain>.<base domain>
	CustomDomain string // optional, exact-match resolution wins over subdomain
	OwnerUserID  string
	IsActive     bool

	// Connected-payments account state, populated by the processor.
	ProcessorAccountID string
	PayoutsEnabled     bool
	ChargesEnabled     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantContext is the resolved view of an inbound request's tenant: the
// store plus its current subscription snapshot. Subscription and Plan are
// nil when the store has no subscription in a counts-toward-access status.
type TenantContext struct {
	Store        *Store
	Subscription *Subscription
	Plan         *SubscriptionPlan
}

// StoreRepository defines data access for stores.
type StoreRepository interface {
	Create(ctx context.Context, store *Store) error
	GetByID(ctx context.Context, id string) (*Store, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Store, error)
	GetByCustomDomain(ctx context.Context, domain string) (*Store, error)
	GetByProcessorAccountID(ctx context.Context, accountID string) (*Store, error)
	Update(ctx context.Context, store *Store) error
	// Deactivate soft-deletes: clears is_active and scrambles the subdomain
	// so it can be reused. Store rows are never hard-deleted.
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Store, error)
}
