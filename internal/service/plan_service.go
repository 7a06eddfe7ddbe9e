package service

import (
	"context"
	"log/slog"

	"github.com/yourorg/storefront/internal/domain"
)

// PlanService manages the plan catalog. Administration only; tenants read
// plans through the resolver and the limit engine.
type PlanService struct {
	plans  domain.PlanRepository
	logger *slog.Logger
}

// NewPlanService creates a new plan service
func NewPlanService(plans domain.PlanRepository, logger *slog.Logger) *PlanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanService{plans: plans, logger: logger}
}

// CreatePlan validates the feature bundle and creates a catalog entry.
func (s *PlanService) CreatePlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	if err := plan.Features.Validate(); err != nil {
		return err
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return err
	}
	s.logger.Info("plan created",
		slog.String("plan_id", plan.ID),
		slog.String("type", string(plan.Type)),
	)
	return nil
}

// UpdatePlan validates and persists changes to a plan. Existing
// subscriptions keep pointing at the same plan row and pick up the new
// quotas on their next limit check.
func (s *PlanService) UpdatePlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	if err := plan.Features.Validate(); err != nil {
		return err
	}
	return s.plans.Update(ctx, plan)
}

// GetPlan retrieves a plan by id.
func (s *PlanService) GetPlan(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	return s.plans.GetByID(ctx, id)
}

// ListActivePlans returns the purchasable catalog.
func (s *PlanService) ListActivePlans(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	return s.plans.ListActive(ctx)
}
