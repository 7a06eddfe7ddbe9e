package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/infrastructure/redis"
	"github.com/yourorg/storefront/internal/observability/metrics"
	"github.com/yourorg/storefront/internal/payments"
	"github.com/yourorg/storefront/pkg/config"
)

// webhookClaimTTL bounds the Redis replay fast path; the database table is
// the durable record.
const webhookClaimTTL = 24 * time.Hour

// SubscriptionService owns the subscription lifecycle. Local state is a
// mirror of the processor: webhook events apply status, period bounds and
// the cancel flag verbatim, and all other writes go through the processor
// first.
type SubscriptionService struct {
	subs      domain.SubscriptionRepository
	plans     domain.PlanRepository
	users     domain.UserRepository
	orders    domain.OrderRepository
	processed domain.WebhookEventRepository
	redis     *redis.Client
	processor payments.Processor
	resolver  *TenantResolver
	cfg       *config.Config
	logger    *slog.Logger

	handlers map[string]func(ctx context.Context, evt *payments.Event) error
}

// NewSubscriptionService creates a new subscription service. redisClient
// may be nil; the replay fast path is then skipped. resolver may be nil
// when no tenant cache needs invalidating.
func NewSubscriptionService(
	subs domain.SubscriptionRepository,
	plans domain.PlanRepository,
	users domain.UserRepository,
	orders domain.OrderRepository,
	processed domain.WebhookEventRepository,
	redisClient *redis.Client,
	processor payments.Processor,
	resolver *TenantResolver,
	cfg *config.Config,
	logger *slog.Logger,
) *SubscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SubscriptionService{
		subs:      subs,
		plans:     plans,
		users:     users,
		orders:    orders,
		processed: processed,
		redis:     redisClient,
		processor: processor,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
	}
	s.handlers = map[string]func(ctx context.Context, evt *payments.Event) error{
		payments.EventCheckoutCompleted:    s.onCheckoutCompleted,
		payments.EventSubscriptionCreated:  s.onSubscriptionEvent,
		payments.EventSubscriptionUpdated:  s.onSubscriptionEvent,
		payments.EventSubscriptionDeleted:  s.onSubscriptionDeleted,
		payments.EventInvoicePaymentOK:     s.onInvoicePaid,
		payments.EventInvoicePaymentFailed: s.onInvoiceFailed,
		payments.EventTrialWillEnd:         s.onTrialWillEnd,
	}
	return s
}

// CheckoutResult is what StartCheckout hands back to the caller: either a
// redirect URL to the hosted checkout, or the subscription itself when the
// plan required no payment.
type CheckoutResult struct {
	CheckoutURL  string
	Subscription *domain.Subscription
}

// StartCheckout begins a subscription for a store. Free plans activate
// immediately without touching the processor; paid plans return a hosted
// checkout URL and the subscription is created when the processor reports
// completion.
func (s *SubscriptionService) StartCheckout(ctx context.Context, owner *domain.User, store *domain.Store, planID, successURL, cancelURL string) (*CheckoutResult, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanNotFound
	}

	if plan.Type == domain.PlanFree {
		sub, err := s.activateFreePlan(ctx, store, plan)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Subscription: sub}, nil
	}

	customerID := owner.ProcessorCustomerID
	if customerID == "" {
		customer, err := s.processor.CreateCustomer(ctx, owner.Email, owner.Name)
		if err != nil {
			return nil, err
		}
		customerID = customer.ID
		owner.ProcessorCustomerID = customerID
		if err := s.users.Update(ctx, owner); err != nil {
			return nil, fmt.Errorf("failed to save processor customer id: %w", err)
		}
	}

	session, err := s.processor.CreateCheckoutSession(ctx, payments.CheckoutParams{
		CustomerID: customerID,
		PriceID:    plan.ProcessorPriceID,
		StoreID:    store.ID,
		PlanID:     plan.ID,
		TrialDays:  s.cfg.TrialDays,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{CheckoutURL: session.URL}, nil
}

// invalidateTenant drops the resolver's cached tenant context after a
// subscription write so access gating sees the new status before the
// cache TTL lapses.
func (s *SubscriptionService) invalidateTenant(ctx context.Context, storeID string) {
	if s.resolver == nil || storeID == "" {
		return
	}
	s.resolver.InvalidateStoreID(ctx, storeID)
}

// supersedeActive cancels the store's current counts-as-active
// subscription so a new one can take its place. The subscriptions table
// holds at most one ACTIVE or TRIALING row per store; creating a second
// without superseding the first would trip the partial unique index.
func (s *SubscriptionService) supersedeActive(ctx context.Context, storeID string, at time.Time) error {
	current, err := s.subs.GetCurrentByStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionRequired) {
			return nil
		}
		return err
	}
	if !current.Status.CountsAsActive() {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	current.Status = domain.StatusCanceled
	current.CanceledAt = &at
	if err := s.subs.Update(ctx, current); err != nil {
		return fmt.Errorf("failed to supersede subscription %s: %w", current.ID, err)
	}
	s.logger.Info("superseded subscription",
		slog.String("store_id", storeID),
		slog.String("subscription_id", current.ID),
	)
	return nil
}

// activateFreePlan creates an immediately active local subscription with a
// synthetic billing period; the processor is never involved.
func (s *SubscriptionService) activateFreePlan(ctx context.Context, store *domain.Store, plan *domain.SubscriptionPlan) (*domain.Subscription, error) {
	now := time.Now().UTC()
	if err := s.supersedeActive(ctx, store.ID, now); err != nil {
		return nil, err
	}
	sub := &domain.Subscription{
		StoreID:            store.ID,
		PlanID:             plan.ID,
		Status:             domain.StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}
	if plan.Interval == domain.IntervalYearly {
		sub.CurrentPeriodEnd = now.AddDate(1, 0, 0)
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.invalidateTenant(ctx, store.ID)
	s.logger.Info("free plan activated",
		slog.String("store_id", store.ID),
		slog.String("plan_id", plan.ID),
	)
	return sub, nil
}

// CancelAtPeriodEnd asks the processor to let the subscription lapse. The
// local cancel flag is set when the processor's update event comes back;
// nothing is written here.
func (s *SubscriptionService) CancelAtPeriodEnd(ctx context.Context, tc *domain.TenantContext) error {
	if tc.Subscription == nil {
		return domain.ErrSubscriptionRequired
	}
	if tc.Subscription.ProcessorSubscriptionID == "" {
		// Free plan: cancel locally, effective immediately at period end.
		tc.Subscription.CancelAtPeriodEnd = true
		if err := s.subs.Update(ctx, tc.Subscription); err != nil {
			return err
		}
		s.invalidateTenant(ctx, tc.Subscription.StoreID)
		return nil
	}
	return s.processor.CancelSubscriptionAtPeriodEnd(ctx, tc.Subscription.ProcessorSubscriptionID)
}

// HandleWebhook processes one processor event exactly once. A duplicate
// delivery is acknowledged without side effects; a handler failure
// releases the claim and returns the error so the delivery is retried.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, evt *payments.Event) error {
	if s.redis != nil {
		fresh, err := s.redis.SetNX(ctx, "webhook:"+evt.ID, 1, webhookClaimTTL)
		if err == nil && !fresh {
			metrics.ObserveWebhookEvent(evt.Type, "duplicate")
			return nil
		}
		// On Redis errors fall through to the durable check.
	}

	fresh, err := s.processed.MarkProcessed(ctx, evt.ID, evt.Type)
	if err != nil {
		return err
	}
	if !fresh {
		metrics.ObserveWebhookEvent(evt.Type, "duplicate")
		return nil
	}

	handler, ok := s.handlers[evt.Type]
	if !ok {
		s.logger.Info("ignoring unhandled webhook event",
			slog.String("event_id", evt.ID),
			slog.String("event_type", evt.Type),
		)
		metrics.ObserveWebhookEvent(evt.Type, "ignored")
		return nil
	}

	if err := handler(ctx, evt); err != nil {
		if forgetErr := s.processed.Forget(ctx, evt.ID); forgetErr != nil {
			s.logger.Error("failed to release webhook claim",
				slog.String("event_id", evt.ID),
				slog.String("error", forgetErr.Error()),
			)
		}
		if s.redis != nil {
			_ = s.redis.Delete(ctx, "webhook:"+evt.ID)
		}
		metrics.ObserveWebhookEvent(evt.Type, "error")
		return err
	}
	metrics.ObserveWebhookEvent(evt.Type, "processed")
	return nil
}

// onCheckoutCompleted creates the local subscription for a finished
// checkout, fetching the authoritative state from the processor. Sessions
// in any status other than complete are ignored.
func (s *SubscriptionService) onCheckoutCompleted(ctx context.Context, evt *payments.Event) error {
	payload, err := payments.DecodePayload[payments.CheckoutSessionPayload](evt)
	if err != nil {
		return err
	}
	if payload.Status != "complete" {
		s.logger.Info("ignoring incomplete checkout session",
			slog.String("session_id", payload.SessionID),
			slog.String("status", payload.Status),
		)
		return nil
	}

	if _, err := s.subs.GetByProcessorID(ctx, payload.SubscriptionID); err == nil {
		// Subscription events beat the checkout event; nothing to create.
		return nil
	} else if !errors.Is(err, domain.ErrSubscriptionRequired) {
		return err
	}

	state, err := s.processor.GetSubscription(ctx, payload.SubscriptionID)
	if err != nil {
		return err
	}
	status, ok := domain.ParseSubscriptionStatus(state.Status)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, state.Status)
	}

	if status.CountsAsActive() {
		if err := s.supersedeActive(ctx, payload.StoreID, evt.OccurredAt); err != nil {
			return err
		}
	}

	sub := &domain.Subscription{
		StoreID:                 payload.StoreID,
		PlanID:                  payload.PlanID,
		ProcessorSubscriptionID: payload.SubscriptionID,
		ProcessorCustomerID:     payload.CustomerID,
		Status:                  status,
		CurrentPeriodStart:      state.CurrentPeriodStart,
		CurrentPeriodEnd:        state.CurrentPeriodEnd,
		CancelAtPeriodEnd:       state.CancelAtPeriodEnd,
		TrialEndsAt:             state.TrialEnd,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return err
	}
	s.invalidateTenant(ctx, sub.StoreID)
	s.logger.Info("subscription created from checkout",
		slog.String("store_id", sub.StoreID),
		slog.String("subscription_id", sub.ID),
		slog.String("status", string(sub.Status)),
	)
	return nil
}

// onSubscriptionEvent applies a created/updated event verbatim to the
// local mirror. Events for subscriptions we have no record of are logged
// and acknowledged; the checkout handler creates the record.
func (s *SubscriptionService) onSubscriptionEvent(ctx context.Context, evt *payments.Event) error {
	payload, err := payments.DecodePayload[payments.SubscriptionPayload](evt)
	if err != nil {
		return err
	}
	sub, err := s.subs.GetByProcessorID(ctx, payload.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionRequired) {
			s.logger.Warn("subscription event for unknown subscription",
				slog.String("processor_subscription_id", payload.SubscriptionID),
				slog.String("event_type", evt.Type),
			)
			return nil
		}
		return err
	}

	status, ok := domain.ParseSubscriptionStatus(payload.Status)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, payload.Status)
	}
	sub.Status = status
	sub.CurrentPeriodStart = payload.CurrentPeriodStart
	sub.CurrentPeriodEnd = payload.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = payload.CancelAtPeriodEnd
	sub.TrialEndsAt = payload.TrialEnd
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}
	s.invalidateTenant(ctx, sub.StoreID)
	return nil
}

// onSubscriptionDeleted marks the local mirror canceled. CANCELED is
// terminal; a new subscription row replaces it if the store re-subscribes.
func (s *SubscriptionService) onSubscriptionDeleted(ctx context.Context, evt *payments.Event) error {
	payload, err := payments.DecodePayload[payments.SubscriptionPayload](evt)
	if err != nil {
		return err
	}
	sub, err := s.subs.GetByProcessorID(ctx, payload.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionRequired) {
			return nil
		}
		return err
	}
	now := evt.OccurredAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	sub.Status = domain.StatusCanceled
	sub.CanceledAt = &now
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}
	s.invalidateTenant(ctx, sub.StoreID)
	return nil
}

// onInvoicePaid records the payment and reactivates the subscription. For
// connected order invoices it also writes the platform fee split onto the
// order.
func (s *SubscriptionService) onInvoicePaid(ctx context.Context, evt *payments.Event) error {
	payload, err := payments.DecodePayload[payments.InvoicePayload](evt)
	if err != nil {
		return err
	}

	if payload.OrderID != "" && payload.StoreID != "" {
		fee, merchant := payments.Split(payload.AmountCents, s.cfg.PlatformFeeBps)
		if err := s.orders.SetPaymentSplit(ctx, payload.StoreID, payload.OrderID, fee, merchant); err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				s.logger.Warn("payment for unknown order",
					slog.String("order_id", payload.OrderID),
					slog.String("store_id", payload.StoreID),
				)
				return nil
			}
			return err
		}
		return nil
	}

	if payload.SubscriptionID == "" {
		return nil
	}
	sub, err := s.subs.GetByProcessorID(ctx, payload.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionRequired) {
			return nil
		}
		return err
	}
	paidAt := evt.OccurredAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	sub.LastPaymentAt = &paidAt
	sub.Status = domain.StatusActive
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}
	s.invalidateTenant(ctx, sub.StoreID)
	return nil
}

// onInvoiceFailed moves the subscription to PAST_DUE. PAST_DUE still
// counts for resolution but fails access gating.
func (s *SubscriptionService) onInvoiceFailed(ctx context.Context, evt *payments.Event) error {
	payload, err := payments.DecodePayload[payments.InvoicePayload](evt)
	if err != nil {
		return err
	}
	if payload.SubscriptionID == "" {
		return nil
	}
	sub, err := s.subs.GetByProcessorID(ctx, payload.SubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionRequired) {
			return nil
		}
		return err
	}
	sub.Status = domain.StatusPastDue
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}
	s.invalidateTenant(ctx, sub.StoreID)
	return nil
}

// onTrialWillEnd only logs. Customer notification is a frontend concern;
// the record here makes the event visible in operations.
func (s *SubscriptionService) onTrialWillEnd(ctx context.Context, evt *payments.Event) error {
	payload, err := payments.DecodePayload[payments.SubscriptionPayload](evt)
	if err != nil {
		return err
	}
	s.logger.Info("subscription trial ending soon",
		slog.String("processor_subscription_id", payload.SubscriptionID),
	)
	return nil
}
