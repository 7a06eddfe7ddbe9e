package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/payments"
	"github.com/yourorg/storefront/internal/service"
)

// WebhookHandler receives payment processor events. Delivery is
// at-least-once: anything but a 2xx makes the processor redeliver, so a
// failed handler returns 500 on purpose.
type WebhookHandler struct {
	subscriptionService *service.SubscriptionService
	logger              *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(subscriptionService *service.SubscriptionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{subscriptionService: subscriptionService, logger: logger}
}

// ServeHTTP handles POST /api/webhooks/payments requests
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var evt payments.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		h.logger.Error("failed to decode webhook event", slog.String("error", err.Error()))
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	if evt.ID == "" || evt.Type == "" {
		http.Error(w, "event id and type are required", http.StatusBadRequest)
		return
	}

	if err := h.subscriptionService.HandleWebhook(r.Context(), &evt); err != nil {
		h.logger.Error("webhook processing failed",
			slog.String("event_id", evt.ID),
			slog.String("event_type", evt.Type),
			slog.String("error", err.Error()),
		)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": evt.ID}, h.logger)
}
