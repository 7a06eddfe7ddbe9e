package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/security"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/service"
)

// OrderItemInput is one requested line item. Customization prices are
// client-submitted and only ever compared against the catalog.
type OrderItemInput struct {
	ProductID      string               `json:"productId"`
	Quantity       int                  `json:"quantity"`
	Customizations []CustomizationInput `json:"customizations,omitempty"`
}

// CustomizationInput is one requested customization line
type CustomizationInput struct {
	OptionID   string `json:"optionId"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
}

// CreateOrderRequest represents an order submission
type CreateOrderRequest struct {
	PaymentMethod   string           `json:"paymentMethod"`
	DeliveryAddress string           `json:"deliveryAddress"`
	Items           []OrderItemInput `json:"items"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID               string              `json:"id"`
	Status           string              `json:"status"`
	TotalCents       int64               `json:"totalCents"`
	PaymentMethod    string              `json:"paymentMethod"`
	DeliveryAddress  string              `json:"deliveryAddress,omitempty"`
	PlatformFeeCents int64               `json:"platformFeeCents,omitempty"`
	MerchantCents    int64               `json:"merchantCents,omitempty"`
	Items            []OrderItemResponse `json:"items"`
	CreatedAt        string              `json:"createdAt"`
}

// OrderItemResponse represents one priced line item
type OrderItemResponse struct {
	ProductID      string                      `json:"productId"`
	ProductName    string                      `json:"productName"`
	Quantity       int                         `json:"quantity"`
	PriceCents     int64                       `json:"priceCents"`
	SubtotalCents  int64                       `json:"subtotalCents"`
	Customizations []CustomizationItemResponse `json:"customizations,omitempty"`
}

// CustomizationItemResponse represents one priced customization line
type CustomizationItemResponse struct {
	OptionID   string `json:"optionId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:               o.ID,
		Status:           string(o.Status),
		TotalCents:       o.TotalCents,
		PaymentMethod:    o.PaymentMethod,
		DeliveryAddress:  o.DeliveryAddress,
		PlatformFeeCents: o.PlatformFeeCents,
		MerchantCents:    o.MerchantCents,
		CreatedAt:        o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, item := range o.Items {
		ir := OrderItemResponse{
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			PriceCents:    item.PriceCents,
			SubtotalCents: item.SubtotalCents,
		}
		for _, c := range item.Customizations {
			ir.Customizations = append(ir.Customizations, CustomizationItemResponse{
				OptionID:   c.OptionID,
				Name:       c.Name,
				PriceCents: c.PriceCents,
				Quantity:   c.Quantity,
			})
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

// OrdersHandler handles order creation and listing
type OrdersHandler struct {
	orderService *service.OrderService
	authz        *security.Authorizer
	logger       *slog.Logger
}

// NewOrdersHandler creates a new orders handler
func NewOrdersHandler(orderService *service.OrderService, authz *security.Authorizer, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{orderService: orderService, authz: authz, logger: logger}
}

// Create handles POST /api/orders requests
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	claims := middleware.GetClaimsFromContext(r.Context())
	if tc == nil || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if len(req.Items) == 0 {
		http.Error(w, "items are required", http.StatusBadRequest)
		return
	}

	items := make([]domain.OrderItemRequest, 0, len(req.Items))
	for _, in := range req.Items {
		item := domain.OrderItemRequest{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
		}
		for _, c := range in.Customizations {
			item.Customizations = append(item.Customizations, domain.CustomizationRequest{
				OptionID:   c.OptionID,
				Quantity:   c.Quantity,
				PriceCents: c.PriceCents,
			})
		}
		items = append(items, item)
	}

	order, err := h.orderService.CreateOrder(r.Context(), tc, service.CreateOrderParams{
		UserID:          claims.UserID,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: req.DeliveryAddress,
		Items:           items,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order), h.logger)
}

// List handles GET /api/orders requests. Customers see their own orders;
// owners and admins see the whole store's.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	claims := middleware.GetClaimsFromContext(r.Context())
	if tc == nil || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := ""
	if !h.authz.HasPermission(domain.Role(claims.Role), security.PermViewAllOrders) {
		userID = claims.UserID
	}

	orders, err := h.orderService.ListOrders(r.Context(), tc, userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	responses := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		responses = append(responses, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, responses, h.logger)
}

// Get handles GET /api/orders/{id} requests
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	claims := middleware.GetClaimsFromContext(r.Context())
	if tc == nil || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), tc, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	// Denied reads look like missing orders so ids cannot be enumerated.
	if !h.authz.CanAccessOrder(claims.UserID, domain.Role(claims.Role), order) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order), h.logger)
}

// UpdateStatusRequest represents a status transition request
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/orders/{id}/status requests
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	claims := middleware.GetClaimsFromContext(r.Context())
	if tc == nil || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	// An owner token minted for one store must not manage another's orders.
	if err := h.authz.ValidateStoreAccess(domain.Role(claims.Role), claims.StoreID, tc.Store.ID); err != nil {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()}, h.logger)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid status value"}, h.logger)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), tc, r.PathValue("id"), status)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order), h.logger)
}

// Pay handles POST /api/orders/{id}/pay requests: it creates a payment
// intent on the store's connected account with the platform fee attached.
func (h *OrdersHandler) Pay(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenantFromContext(r.Context())
	if tc == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	intent, err := h.orderService.PayOrder(r.Context(), tc, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, intent, h.logger)
}
