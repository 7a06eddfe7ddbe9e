package domain

import (
	"context"
	"time"
)

// ProductType distinguishes goods that carry stock from those that do not.
type ProductType string

const (
	ProductPhysical ProductType = "PHYSICAL"
	ProductDigital  ProductType = "DIGITAL"
	ProductService  ProductType = "SERVICE"
)

// Product belongs to a store and a category. PriceCents and Stock are the
// sole source of truth for order computation; client-submitted prices are
// never trusted. Stock is required for PHYSICAL products and nil otherwise.
type Product struct {
	ID          string // UUID
	StoreID     string
	CategoryID  string
	Name        string
	Description string
	Type        ProductType
	PriceCents  int64
	Stock       *int
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasStock reports whether stock accounting applies to this product.
func (p *Product) HasStock() bool {
	return p.Type == ProductPhysical && p.Stock != nil
}

// Photo is an image attached to a product. Only the count matters to the
// storage quota estimate.
type Photo struct {
	ID        string
	ProductID string
	URL       string
	CreatedAt time.Time
}

// CustomizationOption is a priced add-on a buyer can attach to an order
// item (extra topping, engraving). Its price and name are snapshotted into
// the order at commit time.
type CustomizationOption struct {
	ID              string // UUID
	CustomizationID string // grouping on the product
	StoreID         string
	Name            string
	PriceCents      int64
	CreatedAt       time.Time
}

// ProductRepository defines data access for the catalog.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, storeID, id string) (*Product, error)
	// AvailableByIDs batch-fetches products scoped to {store, available}.
	// Missing ids are simply absent from the result; the caller decides
	// how to surface that.
	AvailableByIDs(ctx context.Context, storeID string, ids []string) (map[string]*Product, error)
	OptionsByIDs(ctx context.Context, storeID string, ids []string) (map[string]*CustomizationOption, error)
	Update(ctx context.Context, p *Product) error
	// AddPhoto attaches a photo to a product owned by the store. The
	// caller checks the storage budget first.
	AddPhoto(ctx context.Context, storeID string, photo *Photo) error
	CountByStore(ctx context.Context, storeID string) (int, error)
	PhotoCountByStore(ctx context.Context, storeID string) (int, error)
	ListByStore(ctx context.Context, storeID string) ([]*Product, error)
}
