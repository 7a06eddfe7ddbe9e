package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/service"
)

// PlanRequest represents an admin plan create or update payload
type PlanRequest struct {
	Name               string              `json:"name"`
	Type               string              `json:"type"`
	Interval           string              `json:"interval"`
	PriceCents         int64               `json:"priceCents"`
	Features           domain.PlanFeatures `json:"features"`
	ProcessorPriceID   string              `json:"processorPriceId,omitempty"`
	ProcessorProductID string              `json:"processorProductId,omitempty"`
	IsActive           bool                `json:"isActive"`
}

// PlanResponse represents a plan in API responses
type PlanResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	Interval   string              `json:"interval"`
	PriceCents int64               `json:"priceCents"`
	Features   domain.PlanFeatures `json:"features"`
	IsActive   bool                `json:"isActive"`
}

func toPlanResponse(p *domain.SubscriptionPlan) PlanResponse {
	return PlanResponse{
		ID:         p.ID,
		Name:       p.Name,
		Type:       string(p.Type),
		Interval:   string(p.Interval),
		PriceCents: p.PriceCents,
		Features:   p.Features,
		IsActive:   p.IsActive,
	}
}

// PlansHandler handles the public plan catalog and admin plan management
type PlansHandler struct {
	planService *service.PlanService
	logger      *slog.Logger
}

// NewPlansHandler creates a new plans handler
func NewPlansHandler(planService *service.PlanService, logger *slog.Logger) *PlansHandler {
	return &PlansHandler{planService: planService, logger: logger}
}

// List handles GET /api/plans requests; the public pricing page
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.planService.ListActivePlans(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	responses := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		responses = append(responses, toPlanResponse(p))
	}
	writeJSON(w, http.StatusOK, responses, h.logger)
}

// Create handles POST /api/admin/plans requests
func (h *PlansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	plan := &domain.SubscriptionPlan{
		Name:               req.Name,
		Type:               domain.PlanType(req.Type),
		Interval:           domain.PlanInterval(req.Interval),
		PriceCents:         req.PriceCents,
		Features:           req.Features,
		ProcessorPriceID:   req.ProcessorPriceID,
		ProcessorProductID: req.ProcessorProductID,
		IsActive:           req.IsActive,
	}

	if err := h.planService.CreatePlan(r.Context(), plan); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanResponse(plan), h.logger)
}

// Update handles PUT /api/admin/plans/{id} requests
func (h *PlansHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	plan := &domain.SubscriptionPlan{
		ID:                 r.PathValue("id"),
		Name:               req.Name,
		Type:               domain.PlanType(req.Type),
		Interval:           domain.PlanInterval(req.Interval),
		PriceCents:         req.PriceCents,
		Features:           req.Features,
		ProcessorPriceID:   req.ProcessorPriceID,
		ProcessorProductID: req.ProcessorProductID,
		IsActive:           req.IsActive,
	}

	if err := h.planService.UpdatePlan(r.Context(), plan); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(plan), h.logger)
}
