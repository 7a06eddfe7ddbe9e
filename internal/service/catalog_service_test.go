package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/storefront/internal/domain"
)

func newCatalogFixture(features domain.PlanFeatures) (*CatalogService, *fakeProductRepo, *domain.TenantContext) {
	products := newFakeProductRepo()
	limits := NewLimitService(products, newFakeOrderRepo(products), nil)
	return NewCatalogService(products, limits, nil), products, limitTenant(features)
}

func TestCreateProductScopesToTenant(t *testing.T) {
	svc, _, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 10, MaxOrders: 10, MaxStorageMB: 10})

	p, err := svc.CreateProduct(context.Background(), tc, &domain.Product{
		Name:       "Mug",
		Type:       domain.ProductPhysical,
		PriceCents: 1200,
		Stock:      intPtr(5),
		StoreID:    "someone-else",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if p.StoreID != "s1" {
		t.Fatalf("expected store id forced to tenant, got %s", p.StoreID)
	}
}

func TestCreateProductEnforcesQuota(t *testing.T) {
	svc, _, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 1, MaxOrders: 10, MaxStorageMB: 10})

	first := &domain.Product{Name: "Mug", Type: domain.ProductDigital, PriceCents: 100}
	if _, err := svc.CreateProduct(context.Background(), tc, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.CreateProduct(context.Background(), tc, &domain.Product{
		Name: "Cap", Type: domain.ProductDigital, PriceCents: 100,
	})
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if limitErr.Resource != domain.ResourceProducts {
		t.Fatalf("expected products resource, got %+v", limitErr)
	}
}

func TestCreateProductValidatesStockByType(t *testing.T) {
	svc, _, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 10, MaxOrders: 10, MaxStorageMB: 10})

	cases := []*domain.Product{
		{Name: "Mug", Type: domain.ProductPhysical, PriceCents: 100},                        // missing stock
		{Name: "PDF", Type: domain.ProductDigital, PriceCents: 100, Stock: intPtr(1)},       // stock on digital
		{Name: "Cut", Type: domain.ProductService, PriceCents: 100, Stock: intPtr(1)},       // stock on service
		{Name: "Bad", Type: "MYSTERY", PriceCents: 100},                                     // unknown type
		{Name: "Neg", Type: domain.ProductDigital, PriceCents: -5},                          // negative price
		{Name: "", Type: domain.ProductPhysical, PriceCents: 100, Stock: intPtr(0)},         // missing name
		{Name: "Undersold", Type: domain.ProductPhysical, PriceCents: 1, Stock: intPtr(-1)}, // negative stock
	}
	for i, p := range cases {
		if _, err := svc.CreateProduct(context.Background(), tc, p); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, p)
		}
	}
}

func TestAddPhotoChecksStorageBudget(t *testing.T) {
	svc, products, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 10, MaxOrders: 10, MaxStorageMB: 1})
	products.Create(context.Background(), &domain.Product{ID: "p1", StoreID: "s1", Name: "Mug"})

	for i := 0; i < 2; i++ {
		if _, err := svc.AddPhoto(context.Background(), tc, "p1", "https://cdn.example.com/a.jpg"); err != nil {
			t.Fatalf("photo %d failed: %v", i, err)
		}
	}
	_, err := svc.AddPhoto(context.Background(), tc, "p1", "https://cdn.example.com/b.jpg")
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitExceededError for third photo, got %v", err)
	}
	if limitErr.Resource != domain.ResourceStorage {
		t.Fatalf("expected storage resource, got %+v", limitErr)
	}
	if products.photos != 2 {
		t.Fatalf("expected 2 photos recorded, got %d", products.photos)
	}
}

func TestAddPhotoRequiresURL(t *testing.T) {
	svc, _, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 10, MaxOrders: 10, MaxStorageMB: 10})
	if _, err := svc.AddPhoto(context.Background(), tc, "p1", ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestAddPhotoUnknownProduct(t *testing.T) {
	svc, _, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 10, MaxOrders: 10, MaxStorageMB: 10})
	_, err := svc.AddPhoto(context.Background(), tc, "ghost", "https://cdn.example.com/a.jpg")
	var unavailable *domain.ProductUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ProductUnavailableError, got %v", err)
	}
}

func TestGetProductCrossTenant(t *testing.T) {
	svc, products, tc := newCatalogFixture(domain.PlanFeatures{MaxProducts: 10, MaxOrders: 10, MaxStorageMB: 10})
	products.Create(context.Background(), &domain.Product{ID: "theirs", StoreID: "s2", Name: "Secret"})

	_, err := svc.GetProduct(context.Background(), tc, "theirs")
	var unavailable *domain.ProductUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected cross-tenant read to look like a missing product, got %v", err)
	}
}
