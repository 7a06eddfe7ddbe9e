package domain

import (
	"context"
	"fmt"
	"time"
)

// PlanType is the subscription tier.
type PlanType string

const (
	PlanFree       PlanType = "FREE"
	PlanBasic      PlanType = "BASIC"
	PlanPro        PlanType = "PRO"
	PlanEnterprise PlanType = "ENTERPRISE"
)

// PlanInterval is the billing cadence.
type PlanInterval string

const (
	IntervalMonthly PlanInterval = "MONTHLY"
	IntervalYearly  PlanInterval = "YEARLY"
)

// Unlimited marks a quota with no cap.
const Unlimited = -1

// PlanFeatures is the closed quota/feature bundle attached to a plan.
// Quotas of -1 mean unlimited. Validated once at plan creation; orders and
// usage never mutate it.
type PlanFeatures struct {
	MaxProducts     int  `json:"maxProducts"`
	MaxOrders       int  `json:"maxOrders"`
	MaxStorageMB    int  `json:"maxStorage"`
	CustomDomain    bool `json:"customDomain"`
	PremiumThemes   bool `json:"premiumThemes"`
	Analytics       bool `json:"analytics"`
	APIAccess       bool `json:"apiAccess"`
	PrioritySupport bool `json:"prioritySupport"`
}

// Validate rejects quota values that are neither a positive cap nor the
// explicit Unlimited marker.
func (f PlanFeatures) Validate() error {
	for name, v := range map[string]int{
		"maxProducts": f.MaxProducts,
		"maxOrders":   f.MaxOrders,
		"maxStorage":  f.MaxStorageMB,
	} {
		if v < Unlimited || v == 0 {
			return fmt.Errorf("%w: %s must be positive or -1 (unlimited), got %d", ErrInvalidQuantity, name, v)
		}
	}
	return nil
}

// FeatureFlag names a boolean capability on a plan.
type FeatureFlag string

const (
	FeatureCustomDomain    FeatureFlag = "customDomain"
	FeaturePremiumThemes   FeatureFlag = "premiumThemes"
	FeatureAnalytics       FeatureFlag = "analytics"
	FeatureAPIAccess       FeatureFlag = "apiAccess"
	FeaturePrioritySupport FeatureFlag = "prioritySupport"
)

// Has reports whether the named boolean capability is enabled.
func (f PlanFeatures) Has(flag FeatureFlag) bool {
	switch flag {
	case FeatureCustomDomain:
		return f.CustomDomain
	case FeaturePremiumThemes:
		return f.PremiumThemes
	case FeatureAnalytics:
		return f.Analytics
	case FeatureAPIAccess:
		return f.APIAccess
	case FeaturePrioritySupport:
		return f.PrioritySupport
	default:
		return false
	}
}

// SubscriptionPlan is an immutable catalog entry administrators manage.
// PriceCents is in minor currency units.
type SubscriptionPlan struct {
	ID         string // UUID
	Name       string
	Type       PlanType
	Interval   PlanInterval
	PriceCents int64
	Features   PlanFeatures

	// Processor correlation ids; empty for the free plan.
	ProcessorPriceID   string
	ProcessorProductID string

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlanRepository defines data access for subscription plans.
type PlanRepository interface {
	Create(ctx context.Context, plan *SubscriptionPlan) error
	GetByID(ctx context.Context, id string) (*SubscriptionPlan, error)
	Update(ctx context.Context, plan *SubscriptionPlan) error
	ListActive(ctx context.Context) ([]*SubscriptionPlan, error)
}
