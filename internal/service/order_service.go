package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/events"
	"github.com/yourorg/storefront/internal/observability/metrics"
	"github.com/yourorg/storefront/internal/payments"
)

// CreateOrderParams captures an order request after authentication. Items
// carry client-submitted customization prices that are only ever compared
// against the catalog.
type CreateOrderParams struct {
	UserID          string
	PaymentMethod   string
	DeliveryAddress string
	Items           []domain.OrderItemRequest
}

// OrderService is the order commit engine: it validates a request against
// the live catalog, prices it server-side, and commits order rows plus
// stock decrements as one transaction.
type OrderService struct {
	orders    domain.OrderRepository
	limits    *LimitService
	publisher events.Publisher
	processor payments.Processor
	feeBps    int
	logger    *slog.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders domain.OrderRepository,
	limits *LimitService,
	publisher events.Publisher,
	processor payments.Processor,
	feeBps int,
	logger *slog.Logger,
) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{
		orders:    orders,
		limits:    limits,
		publisher: publisher,
		processor: processor,
		feeBps:    feeBps,
		logger:    logger,
	}
}

// CreateOrder validates and commits an order for the resolved tenant.
// On success the order is fully priced from the catalog and stock for
// physical items has been decremented atomically with the order rows.
func (s *OrderService) CreateOrder(ctx context.Context, tc *domain.TenantContext, params CreateOrderParams) (*domain.Order, error) {
	if err := validateQuantities(params.Items); err != nil {
		return nil, err
	}

	decision, err := s.limits.CheckOrderCreate(ctx, tc)
	if err != nil {
		return nil, err
	}
	if err := Enforce(decision); err != nil {
		return nil, err
	}

	start := time.Now()
	var order *domain.Order
	err = s.orders.InTx(ctx, func(tx domain.OrderTx) error {
		products, err := tx.ProductsForUpdate(ctx, tc.Store.ID, productIDs(params.Items))
		if err != nil {
			return err
		}
		options, err := tx.OptionsByIDs(ctx, tc.Store.ID, optionIDs(params.Items))
		if err != nil {
			return err
		}

		built, err := PriceOrder(params.Items, products, options)
		if err != nil {
			return err
		}
		built.StoreID = tc.Store.ID
		built.UserID = params.UserID
		built.Status = domain.OrderInPreparation
		built.PaymentMethod = params.PaymentMethod
		built.DeliveryAddress = params.DeliveryAddress

		for _, item := range built.Items {
			if products[item.ProductID].HasStock() {
				if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		if err := tx.InsertOrder(ctx, built); err != nil {
			return err
		}
		order = built
		return nil
	})
	if err != nil {
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			metrics.ObserveStockConflict()
			metrics.ObserveOrderCommit("stock_conflict", time.Since(start))
		} else {
			metrics.ObserveOrderCommit("error", time.Since(start))
		}
		return nil, err
	}
	metrics.ObserveOrderCommit("success", time.Since(start))

	s.logger.Info("order committed",
		slog.String("order_id", order.ID),
		slog.String("store_id", order.StoreID),
		slog.Int64("total_cents", order.TotalCents),
	)
	s.publisher.PublishOrderCreated(order.StoreID, events.OrderCreatedPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		Items:      eventLines(order.Items),
	})
	return order, nil
}

// PriceOrder computes the authoritative order from the locked catalog
// rows. Pure: it reads only its arguments, so concurrency control lives
// entirely in the transaction around it.
func PriceOrder(
	items []domain.OrderItemRequest,
	products map[string]*domain.Product,
	options map[string]*domain.CustomizationOption,
) (*domain.Order, error) {
	order := &domain.Order{}
	for _, req := range items {
		p, ok := products[req.ProductID]
		if !ok {
			return nil, &domain.ProductUnavailableError{ProductID: req.ProductID}
		}
		if p.HasStock() && *p.Stock < req.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				Requested: req.Quantity,
				Available: *p.Stock,
			}
		}

		item := domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    req.Quantity,
			PriceCents:  p.PriceCents,
		}
		subtotal := p.PriceCents * int64(req.Quantity)

		for _, c := range req.Customizations {
			opt, ok := options[c.OptionID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", domain.ErrCustomizationNotFound, c.OptionID)
			}
			if opt.PriceCents != c.PriceCents {
				return nil, fmt.Errorf("%w: option %s", domain.ErrPriceMismatch, c.OptionID)
			}
			item.Customizations = append(item.Customizations, domain.OrderItemCustomization{
				OptionID:   opt.ID,
				Name:       opt.Name,
				PriceCents: opt.PriceCents,
				Quantity:   c.Quantity,
			})
			subtotal += opt.PriceCents * int64(c.Quantity)
		}

		item.SubtotalCents = subtotal
		order.TotalCents += subtotal
		order.Items = append(order.Items, item)
	}
	return order, nil
}

// GetOrder retrieves an order scoped to the tenant.
func (s *OrderService) GetOrder(ctx context.Context, tc *domain.TenantContext, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, tc.Store.ID, id)
}

// ListOrders returns the tenant's orders; when userID is non-empty only
// that user's orders are returned.
func (s *OrderService) ListOrders(ctx context.Context, tc *domain.TenantContext, userID string) ([]*domain.Order, error) {
	if userID != "" {
		return s.orders.ListByUser(ctx, tc.Store.ID, userID)
	}
	return s.orders.ListByStore(ctx, tc.Store.ID)
}

// UpdateStatus moves an order along the fulfillment state machine.
// Transitions outside the allowed edges are rejected before any write.
func (s *OrderService) UpdateStatus(ctx context.Context, tc *domain.TenantContext, id string, to domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, tc.Store.ID, id)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	if err := s.orders.UpdateStatus(ctx, tc.Store.ID, id, to); err != nil {
		return nil, err
	}

	s.publisher.PublishOrderStatusChanged(tc.Store.ID, events.OrderStatusChangedPayload{
		OrderID: order.ID,
		From:    string(from),
		To:      string(to),
	})
	order.Status = to
	return order, nil
}

// PayOrder creates a connected payment intent for an order: the platform
// fee is withheld and the remainder routed to the store's payout account.
func (s *OrderService) PayOrder(ctx context.Context, tc *domain.TenantContext, orderID string) (*payments.PaymentIntent, error) {
	if tc.Store.ProcessorAccountID == "" || !tc.Store.ChargesEnabled {
		return nil, fmt.Errorf("store %s cannot accept card payments yet", tc.Store.ID)
	}
	order, err := s.orders.GetByID(ctx, tc.Store.ID, orderID)
	if err != nil {
		return nil, err
	}
	return s.processor.CreatePaymentIntent(ctx, payments.IntentParams{
		AmountCents:        order.TotalCents,
		Currency:           "usd",
		OrderID:            order.ID,
		StoreID:            tc.Store.ID,
		DestinationAccount: tc.Store.ProcessorAccountID,
		FeeBps:             s.feeBps,
	})
}

// RecordPaymentSplit persists the platform fee split computed when the
// order's payment succeeds.
func (s *OrderService) RecordPaymentSplit(ctx context.Context, storeID, orderID string, platformFee, merchant int64) error {
	return s.orders.SetPaymentSplit(ctx, storeID, orderID, platformFee, merchant)
}

func validateQuantities(items []domain.OrderItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order has no items", domain.ErrInvalidQuantity)
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: product %s quantity %d", domain.ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
		for _, c := range item.Customizations {
			if c.Quantity < 1 {
				return fmt.Errorf("%w: option %s quantity %d", domain.ErrInvalidQuantity, c.OptionID, c.Quantity)
			}
		}
	}
	return nil
}

func productIDs(items []domain.OrderItemRequest) []string {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func optionIDs(items []domain.OrderItemRequest) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, item := range items {
		for _, c := range item.Customizations {
			if !seen[c.OptionID] {
				seen[c.OptionID] = true
				ids = append(ids, c.OptionID)
			}
		}
	}
	return ids
}

func eventLines(items []domain.OrderItem) []events.OrderItemLine {
	out := make([]events.OrderItemLine, 0, len(items))
	for _, item := range items {
		out = append(out, events.OrderItemLine{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}
	return out
}
