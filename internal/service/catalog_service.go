package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/storefront/internal/domain"
)

// CatalogService manages a store's products under the plan limit engine:
// product creation is gated on the product quota and photo additions on
// the storage quota.
type CatalogService struct {
	products domain.ProductRepository
	limits   *LimitService
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products domain.ProductRepository, limits *LimitService, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{products: products, limits: limits, logger: logger}
}

// CreateProduct validates and creates a product for the tenant. Physical
// products must carry stock; others must not.
func (s *CatalogService) CreateProduct(ctx context.Context, tc *domain.TenantContext, p *domain.Product) (*domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	decision, err := s.limits.CheckProductCreate(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := Enforce(decision); err != nil {
		return nil, err
	}

	p.StoreID = tc.Store.ID
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("store_id", p.StoreID),
	)
	return p, nil
}

// UpdateProduct persists changes to a tenant's product.
func (s *CatalogService) UpdateProduct(ctx context.Context, tc *domain.TenantContext, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	p.StoreID = tc.Store.ID
	return s.products.Update(ctx, p)
}

// GetProduct retrieves a product scoped to the tenant.
func (s *CatalogService) GetProduct(ctx context.Context, tc *domain.TenantContext, id string) (*domain.Product, error) {
	return s.products.GetByID(ctx, tc.Store.ID, id)
}

// ListProducts returns the tenant's catalog.
func (s *CatalogService) ListProducts(ctx context.Context, tc *domain.TenantContext) ([]*domain.Product, error) {
	return s.products.ListByStore(ctx, tc.Store.ID)
}

// CheckPhotoBudget decides whether the tenant may attach addPhotos more
// photos under the storage estimate. The upload itself happens elsewhere;
// this is the gate in front of it.
func (s *CatalogService) CheckPhotoBudget(ctx context.Context, tc *domain.TenantContext, addPhotos int) error {
	if addPhotos < 1 {
		return fmt.Errorf("%w: photo count %d", domain.ErrInvalidQuantity, addPhotos)
	}
	decision, err := s.limits.CheckStorage(ctx, tc, addPhotos)
	if err != nil {
		return err
	}
	return Enforce(decision)
}

// AddPhoto checks the storage budget for one photo and records it against
// the product.
func (s *CatalogService) AddPhoto(ctx context.Context, tc *domain.TenantContext, productID, url string) (*domain.Photo, error) {
	if url == "" {
		return nil, fmt.Errorf("photo url is required")
	}
	if err := s.CheckPhotoBudget(ctx, tc, 1); err != nil {
		return nil, err
	}
	photo := &domain.Photo{ProductID: productID, URL: url}
	if err := s.products.AddPhoto(ctx, tc.Store.ID, photo); err != nil {
		return nil, err
	}
	s.logger.Info("photo added",
		slog.String("product_id", productID),
		slog.String("store_id", tc.Store.ID),
	)
	return photo, nil
}

func validateProduct(p *domain.Product) error {
	switch p.Type {
	case domain.ProductPhysical:
		if p.Stock == nil || *p.Stock < 0 {
			return fmt.Errorf("%w: physical products require non-negative stock", domain.ErrInvalidQuantity)
		}
	case domain.ProductDigital, domain.ProductService:
		if p.Stock != nil {
			return fmt.Errorf("%w: %s products do not carry stock", domain.ErrInvalidQuantity, p.Type)
		}
	default:
		return fmt.Errorf("%w: unknown product type %q", domain.ErrInvalidStatus, p.Type)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: negative price", domain.ErrInvalidQuantity)
	}
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	return nil
}
