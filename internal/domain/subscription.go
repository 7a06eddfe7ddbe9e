package domain

import (
	"context"
	"time"
)

// SubscriptionStatus mirrors the payment processor's lifecycle statuses.
// The processor is authoritative for this entity; inbound webhook events
// overwrite status, period bounds and the cancel flag verbatim.
type SubscriptionStatus string

const (
	StatusIncomplete        SubscriptionStatus = "INCOMPLETE"
	StatusIncompleteExpired SubscriptionStatus = "INCOMPLETE_EXPIRED"
	StatusTrialing          SubscriptionStatus = "TRIALING"
	StatusActive            SubscriptionStatus = "ACTIVE"
	StatusPastDue           SubscriptionStatus = "PAST_DUE"
	StatusCanceled          SubscriptionStatus = "CANCELED"
	StatusUnpaid            SubscriptionStatus = "UNPAID"
)

// ParseSubscriptionStatus validates a processor-reported status string.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	switch st := SubscriptionStatus(s); st {
	case StatusIncomplete, StatusIncompleteExpired, StatusTrialing,
		StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid:
		return st, true
	}
	return "", false
}

// CountsAsActive reports whether a subscription in this status grants
// tenant access. All other statuses fail gating for non-admin users.
func (s SubscriptionStatus) CountsAsActive() bool {
	return s == StatusActive || s == StatusTrialing
}

// Subscription binds one store to one plan for a billing period.
// At most one subscription per store is in a counts-as-active status at
// any time; CANCELED is terminal and only a new row replaces it.
type Subscription struct {
	ID      string // UUID
	StoreID string
	PlanID  string

	ProcessorSubscriptionID string
	ProcessorCustomerID     string

	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time // exclusive bound
	CancelAtPeriodEnd  bool
	TrialEndsAt        *time.Time
	LastPaymentAt      *time.Time
	CanceledAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionRepository defines data access for subscriptions. Written
// exclusively by the subscription state machine; read by the tenant
// resolver and the plan limit engine.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id string) (*Subscription, error)
	// GetCurrentByStore returns the store's newest subscription that still
	// counts toward access decisions (ACTIVE, TRIALING or PAST_DUE), or
	// ErrSubscriptionRequired when there is none.
	GetCurrentByStore(ctx context.Context, storeID string) (*Subscription, error)
	GetByProcessorID(ctx context.Context, processorSubscriptionID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
}

// WebhookEventRepository records processed processor event ids so webhook
// delivery can be at-least-once without double side effects.
type WebhookEventRepository interface {
	// MarkProcessed records the event id and returns false if it had
	// already been recorded (replay).
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	// Forget releases a claim after a failed handler so the processor's
	// redelivery is handled instead of skipped.
	Forget(ctx context.Context, eventID string) error
}
