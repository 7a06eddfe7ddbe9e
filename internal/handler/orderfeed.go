package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/events"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/service"
)

// OrderFeedHandler streams a store's order events over WebSocket so the
// merchant dashboard updates without polling.
type OrderFeedHandler struct {
	hub            *events.Hub
	authService    *service.AuthService
	logger         *slog.Logger
	allowedOrigins []string
}

// NewOrderFeedHandler creates a new order feed handler
func NewOrderFeedHandler(hub *events.Hub, authService *service.AuthService, logger *slog.Logger, allowedOrigins []string) *OrderFeedHandler {
	return &OrderFeedHandler{
		hub:            hub,
		authService:    authService,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// upgrader is initialized per-request to use the instance's allowed origins
func (h *OrderFeedHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/orders?token=... requests. Browsers cannot set
// an Authorization header on WebSocket upgrades, so the token rides the
// query string.
func (h *OrderFeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "store not resolved", http.StatusNotFound)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.authService.VerifyToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Role != string(domain.RoleOwner) && claims.Role != string(domain.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if claims.Role == string(domain.RoleOwner) && claims.StoreID != tc.Store.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	feed, cancel := h.hub.Subscribe(tc.Store.ID)
	defer cancel()

	h.logger.Debug("order feed opened",
		slog.String("store_id", tc.Store.ID),
		slog.String("user_id", claims.UserID),
	)

	if err := h.streamFeed(r.Context().Done(), ws, feed); err != nil {
		h.logger.Debug("order feed ended",
			slog.String("store_id", tc.Store.ID),
			slog.String("reason", err.Error()),
		)
	}
}

// streamFeed forwards hub events to the WebSocket client with a heartbeat
// ping to keep the connection alive.
func (h *OrderFeedHandler) streamFeed(done <-chan struct{}, ws *websocket.Conn, feed <-chan events.OrderEvent) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	// Drain the read side so close frames are processed.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case evt := <-feed:
			if err := ws.WriteJSON(evt); err != nil {
				return err
			}
		case <-ticker.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case err := <-readErr:
			return err
		case <-done:
			return nil
		}
	}
}
