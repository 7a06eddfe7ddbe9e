package payments

import (
	"encoding/json"
	"fmt"
	"time"
)

// Processor lifecycle event types. These strings are the processor's wire
// contract and must be matched verbatim.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentOK     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventTrialWillEnd         = "customer.subscription.trial_will_end"
)

// Event is the envelope the processor pushes to our webhook endpoint.
// Data holds the type-specific payload.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"created"`
	Data       json.RawMessage `json:"data"`
}

// CheckoutSessionPayload accompanies checkout.session.completed.
type CheckoutSessionPayload struct {
	SessionID      string `json:"session_id"`
	Status         string `json:"status"` // only "complete" is actionable
	CustomerID     string `json:"customer"`
	SubscriptionID string `json:"subscription"`
	// Metadata carries through the store and plan the checkout was
	// started for.
	StoreID string `json:"store_id"`
	PlanID  string `json:"plan_id"`
}

// SubscriptionPayload accompanies the customer.subscription.* events. The
// processor is authoritative: status, period bounds and the cancel flag
// are applied verbatim.
type SubscriptionPayload struct {
	SubscriptionID     string    `json:"id"`
	CustomerID         string    `json:"customer"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool      `json:"cancel_at_period_end"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
}

// InvoicePayload accompanies the invoice.payment_* events.
type InvoicePayload struct {
	InvoiceID      string `json:"id"`
	SubscriptionID string `json:"subscription"`
	CustomerID     string `json:"customer"`
	AmountCents    int64  `json:"amount"`
	// OrderID is set on connected-account payment invoices for orders.
	OrderID string `json:"order_id,omitempty"`
	StoreID string `json:"store_id,omitempty"`
}

// DecodePayload unmarshals an event's data into the payload type for its
// event type.
func DecodePayload[T any](evt *Event) (*T, error) {
	var payload T
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return &payload, nil
}
