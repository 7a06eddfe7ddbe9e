package domain

import (
	"context"
	"time"
)

// OrderStatus is the order fulfillment state.
type OrderStatus string

const (
	OrderInPreparation OrderStatus = "IN_PREPARATION"
	OrderShipped       OrderStatus = "SHIPPED"
	OrderReady         OrderStatus = "READY"
	OrderCanceled      OrderStatus = "CANCELED"
	OrderDelivered     OrderStatus = "DELIVERED"
)

// ParseOrderStatus rejects strings outside the closed enum.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderInPreparation, OrderShipped, OrderReady, OrderCanceled, OrderDelivered:
		return st, true
	}
	return "", false
}

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderInPreparation: {OrderShipped: true, OrderReady: true, OrderCanceled: true},
	OrderShipped:       {OrderDelivered: true},
	OrderReady:         {OrderDelivered: true},
	OrderCanceled:      {},
	OrderDelivered:     {},
}

// CanTransition reports whether an order may move from one status to
// another. Orders are never created in a terminal state and only move
// forward.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Order belongs to a store and a user. TotalCents is derived from the
// catalog at commit time, never client-supplied. Immutable after creation
// except for status transitions and the fee split populated by payment
// webhooks.
type Order struct {
	ID              string // UUID
	StoreID         string
	UserID          string
	Status          OrderStatus
	TotalCents      int64
	PaymentMethod   string
	DeliveryAddress string

	// Connected-payments split, written post-commit by the payment webhook.
	PlatformFeeCents int64
	MerchantCents    int64

	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem snapshots the product price at order time, decoupled from
// later catalog changes.
type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	ProductName    string
	Quantity       int
	PriceCents     int64 // unit price at time of order
	SubtotalCents  int64
	Customizations []OrderItemCustomization
}

// OrderItemCustomization snapshots a customization option's name and
// price at order time.
type OrderItemCustomization struct {
	ID          string
	OrderItemID string
	OptionID    string
	Name        string
	PriceCents  int64
	Quantity    int
}

// OrderItemRequest is one requested line item before validation. The
// customization PriceCents is client-submitted and only ever compared
// against the catalog price; it is never persisted.
type OrderItemRequest struct {
	ProductID      string
	Quantity       int
	Customizations []CustomizationRequest
}

// CustomizationRequest is one requested customization line.
type CustomizationRequest struct {
	OptionID   string
	Quantity   int
	PriceCents int64 // client-submitted, equality-checked only
}

// OrderTx is the set of statements available inside an order commit
// transaction. Reads take row locks so two concurrent commits cannot both
// observe pre-decrement stock.
type OrderTx interface {
	// ProductsForUpdate behaves like ProductRepository.AvailableByIDs but
	// locks the returned rows for the duration of the transaction.
	ProductsForUpdate(ctx context.Context, storeID string, ids []string) (map[string]*Product, error)
	OptionsByIDs(ctx context.Context, storeID string, ids []string) (map[string]*CustomizationOption, error)
	// DecrementStock subtracts qty guarded by stock >= qty; it returns an
	// InsufficientStockError when the guard fails so the whole transaction
	// rolls back.
	DecrementStock(ctx context.Context, productID string, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
}

// OrderRepository defines data access for orders. InTx runs fn inside a
// single transaction; any error rolls the whole unit back so no observer
// ever sees a partially built order.
type OrderRepository interface {
	InTx(ctx context.Context, fn func(tx OrderTx) error) error
	GetByID(ctx context.Context, storeID, id string) (*Order, error)
	ListByStore(ctx context.Context, storeID string) ([]*Order, error)
	ListByUser(ctx context.Context, storeID, userID string) ([]*Order, error)
	UpdateStatus(ctx context.Context, storeID, id string, status OrderStatus) error
	SetPaymentSplit(ctx context.Context, storeID, id string, platformFee, merchant int64) error
	// CountInPeriod counts a store's orders created in [start, end), the
	// billing window the plan limit engine charges against.
	CountInPeriod(ctx context.Context, storeID string, start, end time.Time) (int, error)
}
