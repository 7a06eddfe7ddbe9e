package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/domain"
)

type errorResponse struct {
	Error    string `json:"error"`
	Resource string `json:"resource,omitempty"`
	Current  int    `json:"current,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeDomainError maps the error taxonomy onto HTTP status codes. Stock
// conflicts return 409 so clients know a retry may succeed; limit denials
// carry the quota numbers so the dashboard can show where the store stands.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var limitErr *domain.LimitExceededError
	var stockErr *domain.InsufficientStockError
	var productErr *domain.ProductUnavailableError
	var upstreamErr *domain.UpstreamError

	switch {
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:    "plan limit exceeded",
			Resource: string(limitErr.Resource),
			Current:  limitErr.Current,
			Limit:    limitErr.Limit,
		}, logger)
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: stockErr.Error()}, logger)
	case errors.As(err, &productErr):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: productErr.Error()}, logger)
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTenantNotFound),
		errors.Is(err, domain.ErrCustomizationNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()}, logger)
	case errors.Is(err, domain.ErrSubscriptionRequired):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: err.Error()}, logger)
	case errors.Is(err, domain.ErrTenantInactive):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()}, logger)
	case errors.Is(err, domain.ErrPriceMismatch),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()}, logger)
	case errors.Is(err, domain.ErrSubdomainTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()}, logger)
	case errors.As(err, &upstreamErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment processor unavailable"}, logger)
	default:
		if logger != nil {
			logger.Error("internal error", slog.String("error", err.Error()))
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"}, logger)
	}
}
