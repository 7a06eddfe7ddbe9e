package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/service"
)

// ProductRequest represents a product create or update payload
type ProductRequest struct {
	CategoryID  string `json:"categoryId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	PriceCents  int64  `json:"priceCents"`
	Stock       *int   `json:"stock,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	PriceCents  int64  `json:"priceCents"`
	Stock       *int   `json:"stock,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Type:        string(p.Type),
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		IsAvailable: p.IsAvailable,
	}
}

// ProductsHandler handles catalog requests
type ProductsHandler struct {
	catalogService *service.CatalogService
	logger         *slog.Logger
}

// NewProductsHandler creates a new products handler
func NewProductsHandler(catalogService *service.CatalogService, logger *slog.Logger) *ProductsHandler {
	return &ProductsHandler{catalogService: catalogService, logger: logger}
}

// List handles GET /api/products requests
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	products, err := h.catalogService.ListProducts(r.Context(), tc)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	responses := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, responses, h.logger)
}

// Get handles GET /api/products/{id} requests
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	p, err := h.catalogService.GetProduct(r.Context(), tc, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p), h.logger)
}

// Create handles POST /api/products requests
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p := &domain.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Type:        domain.ProductType(req.Type),
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		IsAvailable: req.IsAvailable,
	}

	created, err := h.catalogService.CreateProduct(r.Context(), tc, p)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(created), h.logger)
}

// Update handles PUT /api/products/{id} requests
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p := &domain.Product{
		ID:          r.PathValue("id"),
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Type:        domain.ProductType(req.Type),
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		IsAvailable: req.IsAvailable,
	}

	if err := h.catalogService.UpdateProduct(r.Context(), tc, p); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p), h.logger)
}

// AddPhotoRequest represents a photo attachment
type AddPhotoRequest struct {
	URL string `json:"url"`
}

// AddPhoto handles POST /api/products/{id}/photos requests. The storage
// quota is checked before the photo is recorded.
func (h *ProductsHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	var req AddPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	photo, err := h.catalogService.AddPhoto(r.Context(), tc, r.PathValue("id"), req.URL)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":        photo.ID,
		"productId": photo.ProductID,
		"url":       photo.URL,
	}, h.logger)
}
