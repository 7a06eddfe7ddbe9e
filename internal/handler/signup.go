package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/service"
	"github.com/yourorg/storefront/pkg/config"
)

// SignupRequest represents a merchant signup: an owner account plus their
// store in one step.
type SignupRequest struct {
	StoreName string `json:"storeName"`
	Subdomain string `json:"subdomain"`
	OwnerName string `json:"ownerName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SignupResponse represents the created store and owner
type SignupResponse struct {
	StoreID   string `json:"storeId"`
	Subdomain string `json:"subdomain"`
	StoreURL  string `json:"storeUrl"`
	OwnerID   string `json:"ownerId"`
}

// SignupHandler handles merchant signup requests
type SignupHandler struct {
	storeService *service.StoreService
	logger       *slog.Logger
	config       *config.Config
}

// NewSignupHandler creates a new signup handler
func NewSignupHandler(storeService *service.StoreService, logger *slog.Logger, cfg *config.Config) *SignupHandler {
	return &SignupHandler{
		storeService: storeService,
		logger:       logger,
		config:       cfg,
	}
}

// ServeHTTP handles POST /api/signup requests
func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if req.StoreName == "" || req.Subdomain == "" || req.Email == "" || req.Password == "" || req.OwnerName == "" {
		http.Error(w, "storeName, subdomain, ownerName, email and password are required", http.StatusBadRequest)
		return
	}

	store, owner, err := h.storeService.Signup(r.Context(), service.SignupParams{
		StoreName: req.StoreName,
		Subdomain: req.Subdomain,
		OwnerName: req.OwnerName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	response := SignupResponse{
		StoreID:   store.ID,
		Subdomain: store.Subdomain,
		StoreURL:  "https://" + store.Subdomain + "." + h.config.BaseDomain,
		OwnerID:   owner.ID,
	}
	writeJSON(w, http.StatusCreated, response, h.logger)
}
