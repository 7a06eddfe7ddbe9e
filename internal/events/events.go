package events

import (
	"encoding/json"
	"time"
)

// Topics for the order lifecycle stream. Partition key is the order id so
// all events for one order stay ordered.
const (
	TopicOrderCreated       = "storefront.order.created"
	TopicOrderStatusChanged = "storefront.order.status"
)

// Event types carried on the order stream.
const (
	TypeOrderCreated       = "OrderCreated"
	TypeOrderStatusChanged = "OrderStatusChanged"
)

// Envelope wraps every published event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	StoreID    string          `json:"store_id"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderCreatedPayload announces a committed order.
type OrderCreatedPayload struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	TotalCents int64           `json:"total_cents"`
	Items      []OrderItemLine `json:"items"`
}

// OrderItemLine is one priced line on a created order.
type OrderItemLine struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderStatusChangedPayload announces a status transition.
type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// PartitionKey keys messages by order id.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
