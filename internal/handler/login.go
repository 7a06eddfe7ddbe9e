package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/storefront/internal/security/auth"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/security/ratelimit"
	"github.com/yourorg/storefront/internal/service"
)

const loginWindow = 5 * time.Minute

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler handles user authentication
type LoginHandler struct {
	authService *service.AuthService
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(authService *service.AuthService, limiter *ratelimit.Limiter, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		authService: authService,
		limiter:     limiter,
		logger:      logger,
	}
}

// ServeHTTP handles POST /api/auth/login requests
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	// Tight per-email window against credential stuffing.
	if h.limiter != nil && !h.limiter.AllowStrict("login:"+req.Email, 10, loginWindow) {
		http.Error(w, "too many login attempts", http.StatusTooManyRequests)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email))
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result, h.logger)
}

// LogoutHandler revokes the caller's token
type LogoutHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewLogoutHandler creates a new logout handler
func NewLogoutHandler(authService *service.AuthService, logger *slog.Logger) *LogoutHandler {
	return &LogoutHandler{authService: authService, logger: logger}
}

// ServeHTTP handles POST /api/auth/logout requests.
// Logout verifies its own token because the route sits on the public skip
// list; a revoked token logging out again is a no-op.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tokenString, err := auth.ExtractToken(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, "missing auth", http.StatusUnauthorized)
		return
	}
	claims, err := h.authService.VerifyToken(r.Context(), tokenString)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"}, h.logger)
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"}, h.logger)
}

// RegisterRequest represents a customer registration on a storefront
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// RegisterHandler handles customer registration scoped to the resolved
// store
type RegisterHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewRegisterHandler creates a new register handler
func NewRegisterHandler(authService *service.AuthService, logger *slog.Logger) *RegisterHandler {
	return &RegisterHandler{authService: authService, logger: logger}
}

// ServeHTTP handles POST /api/auth/register requests
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := h.authService.RegisterCustomer(r.Context(), tc, req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()}, h.logger)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()}, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, result, h.logger)
}
