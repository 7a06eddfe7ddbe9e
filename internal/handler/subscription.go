package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/service"
)

// CheckoutRequest represents a subscription checkout start
type CheckoutRequest struct {
	PlanID     string `json:"planId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// SubscriptionResponse represents the store's current subscription
type SubscriptionResponse struct {
	ID                 string     `json:"id"`
	PlanID             string     `json:"planId"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	TrialEndsAt        *time.Time `json:"trialEndsAt,omitempty"`
}

func toSubscriptionResponse(sub *domain.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 sub.ID,
		PlanID:             sub.PlanID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		TrialEndsAt:        sub.TrialEndsAt,
	}
}

// SubscriptionHandler handles subscription lifecycle requests for a store
// owner
type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
	users               domain.UserRepository
	logger              *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(
	subscriptionService *service.SubscriptionService,
	users domain.UserRepository,
	logger *slog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		users:               users,
		logger:              logger,
	}
}

// Current handles GET /api/subscription requests
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}
	if tc.Subscription == nil {
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "active subscription required"}, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(tc.Subscription), h.logger)
}

// Checkout handles POST /api/subscription/checkout requests. Free plans
// activate immediately; paid plans return a hosted checkout URL.
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	claims := middleware.GetClaimsFromContext(r.Context())
	if tc == nil || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PlanID == "" {
		http.Error(w, "planId is required", http.StatusBadRequest)
		return
	}

	owner, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	result, err := h.subscriptionService.StartCheckout(r.Context(), owner, tc.Store, req.PlanID, req.SuccessURL, req.CancelURL)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	if result.Subscription != nil {
		writeJSON(w, http.StatusCreated, toSubscriptionResponse(result.Subscription), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkoutUrl": result.CheckoutURL}, h.logger)
}

// Cancel handles POST /api/subscription/cancel requests. The subscription
// stays active until the period ends; the processor confirms via webhook.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	if err := h.subscriptionService.CancelAtPeriodEnd(r.Context(), tc); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation_scheduled"}, h.logger)
}
