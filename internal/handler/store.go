package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/service"
)

// StoreResponse represents a store in API responses
type StoreResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Subdomain      string `json:"subdomain"`
	CustomDomain   string `json:"customDomain,omitempty"`
	PayoutsEnabled bool   `json:"payoutsEnabled"`
	ChargesEnabled bool   `json:"chargesEnabled"`
}

func toStoreResponse(s *domain.Store) StoreResponse {
	return StoreResponse{
		ID:             s.ID,
		Name:           s.Name,
		Subdomain:      s.Subdomain,
		CustomDomain:   s.CustomDomain,
		PayoutsEnabled: s.PayoutsEnabled,
		ChargesEnabled: s.ChargesEnabled,
	}
}

// UpdateStoreRequest represents a store profile update
type UpdateStoreRequest struct {
	Name         string `json:"name"`
	CustomDomain string `json:"customDomain,omitempty"`
}

// StoreHandler handles store profile and lifecycle requests
type StoreHandler struct {
	storeService *service.StoreService
	users        domain.UserRepository
	logger       *slog.Logger
}

// NewStoreHandler creates a new store handler
func NewStoreHandler(storeService *service.StoreService, users domain.UserRepository, logger *slog.Logger) *StoreHandler {
	return &StoreHandler{storeService: storeService, users: users, logger: logger}
}

// Get handles GET /api/store requests
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toStoreResponse(tc.Store), h.logger)
}

// Update handles PUT /api/store requests
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	var req UpdateStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	// Custom domains are a paid-plan capability.
	if req.CustomDomain != "" && req.CustomDomain != tc.Store.CustomDomain {
		if tc.Plan == nil || !tc.Plan.Features.Has(domain.FeatureCustomDomain) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "custom domains are not included in the current plan"}, h.logger)
			return
		}
	}

	store := *tc.Store
	if req.Name != "" {
		store.Name = req.Name
	}
	store.CustomDomain = req.CustomDomain

	if err := h.storeService.UpdateStore(r.Context(), &store); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toStoreResponse(&store), h.logger)
}

// StartOnboarding handles POST /api/store/onboarding requests: it creates
// the connected payout account and returns the processor's hosted
// onboarding URL.
func (h *StoreHandler) StartOnboarding(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	claims := middleware.GetClaimsFromContext(r.Context())
	if tc == nil || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	owner, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	url, err := h.storeService.StartPayoutOnboarding(r.Context(), tc.Store, owner.Email)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"onboardingUrl": url}, h.logger)
}

// Deactivate handles DELETE /api/store requests. Soft delete: the
// subdomain is released for reuse, order history is retained.
func (h *StoreHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	if err := h.storeService.DeactivateStore(r.Context(), tc.Store); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"}, h.logger)
}
