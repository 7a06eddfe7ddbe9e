package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core taxonomy. Handlers map these onto HTTP
// status codes; services wrap them with context using %w.
var (
	// ErrTenantNotFound covers both an unknown host and an unknown tenant
	// identifier. Deliberately indistinguishable from "exists for another
	// tenant" so resolution never leaks cross-tenant existence.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive means the store exists but has been deactivated.
	// Surfaced as 403 rather than 404.
	ErrTenantInactive = errors.New("tenant inactive")

	// ErrSubscriptionRequired means the tenant has no subscription in a
	// counts-as-active status.
	ErrSubscriptionRequired = errors.New("active subscription required")

	ErrOrderNotFound         = errors.New("order not found")
	ErrUsageNotFound         = errors.New("usage snapshot not found")
	ErrCustomizationNotFound = errors.New("customization option not found")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrUserNotFound          = errors.New("user not found")

	// ErrPriceMismatch is returned when a client-submitted customization
	// price differs from the authoritative catalog price.
	ErrPriceMismatch = errors.New("submitted price does not match catalog price")

	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSubdomainTaken is returned on signup when the requested subdomain
	// already belongs to another store.
	ErrSubdomainTaken = errors.New("subdomain already in use")
)

// ProductUnavailableError is returned when a requested product is missing,
// unavailable, or belongs to another store. All three collapse to the same
// error so callers cannot enumerate another tenant's catalog.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s not found or unavailable", e.ProductID)
}

// InsufficientStockError is returned when a physical product cannot cover
// the requested quantity. During commit it indicates a lost race and is
// retryable by the caller.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// LimitExceededError is returned by the plan limit engine on Deny.
type LimitExceededError struct {
	Resource ResourceClass
	Current  int
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("plan limit exceeded for %s: %d of %d", e.Resource, e.Current, e.Limit)
}

// UpstreamError wraps a failed or timed-out payment processor call. The
// unit of work fails closed; webhook deliveries wrapped in it are not
// acknowledged so the processor retries.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller may simply resubmit the request.
func IsRetryable(err error) bool {
	var stock *InsufficientStockError
	var upstream *UpstreamError
	return errors.As(err, &stock) || errors.As(err, &upstream)
}
