package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/payments"
	"github.com/yourorg/storefront/pkg/config"
)

type subFixture struct {
	subs     *fakeSubRepo
	plans    *fakePlanRepo
	users    *fakeUserRepo
	orders   *fakeOrderRepo
	webhooks *fakeWebhookRepo
	proc     *fakeProcessor
	svc      *SubscriptionService
}

func newSubFixture(t *testing.T, plans ...*domain.SubscriptionPlan) *subFixture {
	t.Helper()
	f := &subFixture{
		subs:     newFakeSubRepo(),
		plans:    newFakePlanRepo(plans...),
		users:    newFakeUserRepo(),
		orders:   newFakeOrderRepo(newFakeProductRepo()),
		webhooks: newFakeWebhookRepo(),
		proc:     &fakeProcessor{},
	}
	cfg := &config.Config{PlatformFeeBps: 500, TrialDays: 14}
	f.svc = NewSubscriptionService(f.subs, f.plans, f.users, f.orders, f.webhooks, nil, f.proc, nil, cfg, nil)
	return f
}

func webhookEvent(t *testing.T, id, eventType string, payload any) *payments.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &payments.Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		Data:       data,
	}
}

func freePlan() *domain.SubscriptionPlan {
	return &domain.SubscriptionPlan{
		ID:       "plan-free",
		Name:     "Free",
		Type:     domain.PlanFree,
		Interval: domain.IntervalMonthly,
		Features: domain.PlanFeatures{MaxProducts: 5, MaxOrders: 20, MaxStorageMB: 50},
		IsActive: true,
	}
}

func proPlan() *domain.SubscriptionPlan {
	return &domain.SubscriptionPlan{
		ID:                 "plan-pro",
		Name:               "Pro",
		Type:               domain.PlanPro,
		Interval:           domain.IntervalMonthly,
		PriceCents:         2900,
		Features:           domain.PlanFeatures{MaxProducts: domain.Unlimited, MaxOrders: domain.Unlimited, MaxStorageMB: domain.Unlimited},
		ProcessorPriceID:   "price_pro",
		ProcessorProductID: "prod_pro",
		IsActive:           true,
	}
}

func TestStartCheckoutFreePlanActivatesImmediately(t *testing.T) {
	f := newSubFixture(t, freePlan())
	owner := &domain.User{ID: "u1", Email: "o@x.com", Role: domain.RoleOwner, StoreID: "s1", IsActive: true}
	store := &domain.Store{ID: "s1", IsActive: true}

	result, err := f.svc.StartCheckout(context.Background(), owner, store, "plan-free", "", "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if result.CheckoutURL != "" {
		t.Fatalf("free plan must not produce a checkout URL, got %q", result.CheckoutURL)
	}
	sub := result.Subscription
	if sub == nil || sub.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE subscription, got %+v", sub)
	}
	wantEnd := sub.CurrentPeriodStart.AddDate(0, 1, 0)
	if !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Fatalf("expected one month period, got %v .. %v", sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	}
	if f.proc.customers != 0 || len(f.proc.checkoutSessions) != 0 {
		t.Fatalf("free plan must not touch the processor")
	}
	if _, err := f.subs.GetCurrentByStore(context.Background(), "s1"); err != nil {
		t.Fatalf("expected persisted current subscription: %v", err)
	}
}

func TestStartCheckoutFreeYearlyPeriod(t *testing.T) {
	plan := freePlan()
	plan.Interval = domain.IntervalYearly
	f := newSubFixture(t, plan)
	owner := &domain.User{ID: "u1", Role: domain.RoleOwner, StoreID: "s1"}

	result, err := f.svc.StartCheckout(context.Background(), owner, &domain.Store{ID: "s1"}, "plan-free", "", "")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	sub := result.Subscription
	wantEnd := sub.CurrentPeriodStart.AddDate(1, 0, 0)
	if !sub.CurrentPeriodEnd.Equal(wantEnd) {
		t.Fatalf("expected one year period, got end %v", sub.CurrentPeriodEnd)
	}
}

func TestStartCheckoutPaidPlanReturnsHostedURL(t *testing.T) {
	f := newSubFixture(t, proPlan())
	owner := &domain.User{ID: "u1", Email: "o@x.com", Name: "Owner", Role: domain.RoleOwner, StoreID: "s1", IsActive: true}
	f.users.users["u1"] = owner

	result, err := f.svc.StartCheckout(context.Background(), owner, &domain.Store{ID: "s1"}, "plan-pro", "https://ok", "https://no")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if result.CheckoutURL == "" || result.Subscription != nil {
		t.Fatalf("expected hosted checkout URL only, got %+v", result)
	}
	if f.proc.customers != 1 {
		t.Fatalf("expected a processor customer to be created, got %d", f.proc.customers)
	}
	if owner.ProcessorCustomerID == "" {
		t.Fatalf("expected processor customer id persisted on owner")
	}
	if len(f.proc.checkoutSessions) != 1 {
		t.Fatalf("expected one checkout session, got %d", len(f.proc.checkoutSessions))
	}
	params := f.proc.checkoutSessions[0]
	if params.PriceID != "price_pro" || params.TrialDays != 14 || params.StoreID != "s1" {
		t.Fatalf("unexpected checkout params: %+v", params)
	}

	// A second checkout reuses the saved customer.
	if _, err := f.svc.StartCheckout(context.Background(), owner, &domain.Store{ID: "s1"}, "plan-pro", "", ""); err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if f.proc.customers != 1 {
		t.Fatalf("expected customer reuse, created %d", f.proc.customers)
	}
}

func TestStartCheckoutRejectsInactivePlan(t *testing.T) {
	plan := proPlan()
	plan.IsActive = false
	f := newSubFixture(t, plan)

	_, err := f.svc.StartCheckout(context.Background(), &domain.User{ID: "u1"}, &domain.Store{ID: "s1"}, "plan-pro", "", "")
	if !errors.Is(err, domain.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestHandleWebhookDuplicateIsAcknowledgedWithoutSideEffects(t *testing.T) {
	f := newSubFixture(t, proPlan())
	evt := webhookEvent(t, "evt_1", payments.EventCheckoutCompleted, payments.CheckoutSessionPayload{
		SessionID:      "cs_1",
		Status:         "complete",
		CustomerID:     "cus_1",
		SubscriptionID: "ps_1",
		StoreID:        "s1",
		PlanID:         "plan-pro",
	})

	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if len(f.subs.subs) != 1 {
		t.Fatalf("expected one subscription, got %d", len(f.subs.subs))
	}

	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("duplicate delivery must be acknowledged: %v", err)
	}
	if len(f.subs.subs) != 1 {
		t.Fatalf("duplicate delivery created a second subscription")
	}
}

func TestHandleWebhookUnknownTypeIsAcknowledged(t *testing.T) {
	f := newSubFixture(t)
	evt := webhookEvent(t, "evt_x", "account.updated", map[string]string{"id": "acct_1"})

	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("unknown event type must be acknowledged: %v", err)
	}
	if !f.webhooks.processed["evt_x"] {
		t.Fatalf("expected unknown event recorded as processed")
	}
}

func TestHandleWebhookFailureReleasesClaimForRedelivery(t *testing.T) {
	f := newSubFixture(t, proPlan())
	f.proc.err = errors.New("processor down")
	evt := webhookEvent(t, "evt_2", payments.EventCheckoutCompleted, payments.CheckoutSessionPayload{
		SessionID:      "cs_2",
		Status:         "complete",
		SubscriptionID: "ps_2",
		StoreID:        "s1",
		PlanID:         "plan-pro",
	})

	if err := f.svc.HandleWebhook(context.Background(), evt); err == nil {
		t.Fatalf("expected handler failure to surface")
	}
	if f.webhooks.processed["evt_2"] {
		t.Fatalf("expected claim released after failure")
	}

	f.proc.err = nil
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if len(f.subs.subs) != 1 {
		t.Fatalf("expected subscription created on redelivery, got %d", len(f.subs.subs))
	}
}

func TestCheckoutCompletedFetchesAuthoritativeState(t *testing.T) {
	f := newSubFixture(t, proPlan())
	trialEnd := time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC)
	f.proc.subscription = &payments.SubscriptionPayload{
		SubscriptionID:     "ps_3",
		CustomerID:         "cus_3",
		Status:             "TRIALING",
		CurrentPeriodStart: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		TrialEnd:           &trialEnd,
	}
	evt := webhookEvent(t, "evt_3", payments.EventCheckoutCompleted, payments.CheckoutSessionPayload{
		SessionID:      "cs_3",
		Status:         "complete",
		CustomerID:     "cus_3",
		SubscriptionID: "ps_3",
		StoreID:        "s1",
		PlanID:         "plan-pro",
	})

	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	sub, err := f.subs.GetByProcessorID(context.Background(), "ps_3")
	if err != nil {
		t.Fatalf("expected subscription: %v", err)
	}
	if sub.Status != domain.StatusTrialing {
		t.Fatalf("expected TRIALING, got %s", sub.Status)
	}
	if sub.TrialEndsAt == nil || !sub.TrialEndsAt.Equal(trialEnd) {
		t.Fatalf("expected trial end applied, got %v", sub.TrialEndsAt)
	}
	if sub.StoreID != "s1" || sub.PlanID != "plan-pro" {
		t.Fatalf("expected checkout metadata carried, got %+v", sub)
	}
}

func TestCheckoutCompletedIgnoresIncompleteSession(t *testing.T) {
	f := newSubFixture(t, proPlan())
	evt := webhookEvent(t, "evt_4", payments.EventCheckoutCompleted, payments.CheckoutSessionPayload{
		SessionID: "cs_4",
		Status:    "expired",
	})

	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if len(f.subs.subs) != 0 {
		t.Fatalf("expected no subscription for incomplete session")
	}
}

func TestSubscriptionUpdatedAppliesProcessorStateVerbatim(t *testing.T) {
	f := newSubFixture(t)
	sub := &domain.Subscription{
		ID: "sub1", StoreID: "s1", PlanID: "plan-pro",
		ProcessorSubscriptionID: "ps_5",
		Status:                  domain.StatusTrialing,
		CancelAtPeriodEnd:       false,
	}
	f.subs.subs["sub1"] = sub

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	evt := webhookEvent(t, "evt_5", payments.EventSubscriptionUpdated, payments.SubscriptionPayload{
		SubscriptionID:     "ps_5",
		Status:             "ACTIVE",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		CancelAtPeriodEnd:  true,
	})

	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if sub.Status != domain.StatusActive || !sub.CancelAtPeriodEnd {
		t.Fatalf("expected verbatim status apply, got %+v", sub)
	}
	if !sub.CurrentPeriodStart.Equal(start) || !sub.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("expected period bounds applied, got %v .. %v", sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	}
}

func TestSubscriptionEventForUnknownSubscriptionIsAcknowledged(t *testing.T) {
	f := newSubFixture(t)
	evt := webhookEvent(t, "evt_6", payments.EventSubscriptionUpdated, payments.SubscriptionPayload{
		SubscriptionID: "ps_unknown",
		Status:         "ACTIVE",
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("expected ack for unknown subscription, got %v", err)
	}
}

func TestSubscriptionEventRejectsInvalidStatus(t *testing.T) {
	f := newSubFixture(t)
	f.subs.subs["sub1"] = &domain.Subscription{ID: "sub1", ProcessorSubscriptionID: "ps_7"}
	evt := webhookEvent(t, "evt_7", payments.EventSubscriptionUpdated, payments.SubscriptionPayload{
		SubscriptionID: "ps_7",
		Status:         "bogus",
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestSubscriptionDeletedIsTerminal(t *testing.T) {
	f := newSubFixture(t)
	sub := &domain.Subscription{ID: "sub1", ProcessorSubscriptionID: "ps_8", Status: domain.StatusActive}
	f.subs.subs["sub1"] = sub

	evt := webhookEvent(t, "evt_8", payments.EventSubscriptionDeleted, payments.SubscriptionPayload{SubscriptionID: "ps_8"})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if sub.Status != domain.StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", sub.Status)
	}
	if sub.CanceledAt == nil || !sub.CanceledAt.Equal(evt.OccurredAt) {
		t.Fatalf("expected canceled-at from event time, got %v", sub.CanceledAt)
	}
}

func TestInvoicePaidReactivatesSubscription(t *testing.T) {
	f := newSubFixture(t)
	sub := &domain.Subscription{ID: "sub1", ProcessorSubscriptionID: "ps_9", Status: domain.StatusPastDue}
	f.subs.subs["sub1"] = sub

	evt := webhookEvent(t, "evt_9", payments.EventInvoicePaymentOK, payments.InvoicePayload{
		InvoiceID:      "in_1",
		SubscriptionID: "ps_9",
		AmountCents:    2900,
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if sub.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE after payment, got %s", sub.Status)
	}
	if sub.LastPaymentAt == nil || !sub.LastPaymentAt.Equal(evt.OccurredAt) {
		t.Fatalf("expected last payment recorded, got %v", sub.LastPaymentAt)
	}
}

func TestInvoicePaidWritesOrderFeeSplit(t *testing.T) {
	f := newSubFixture(t)
	order := &domain.Order{ID: "o1", StoreID: "s1", TotalCents: 10000}
	f.orders.orders["o1"] = order

	evt := webhookEvent(t, "evt_10", payments.EventInvoicePaymentOK, payments.InvoicePayload{
		InvoiceID:   "in_2",
		AmountCents: 10000,
		OrderID:     "o1",
		StoreID:     "s1",
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	// 500 bps of 10000 = 500 platform, 9500 merchant.
	if order.PlatformFeeCents != 500 || order.MerchantCents != 9500 {
		t.Fatalf("expected 500/9500 split, got %d/%d", order.PlatformFeeCents, order.MerchantCents)
	}
}

func TestInvoicePaidForUnknownOrderIsAcknowledged(t *testing.T) {
	f := newSubFixture(t)
	evt := webhookEvent(t, "evt_11", payments.EventInvoicePaymentOK, payments.InvoicePayload{
		InvoiceID:   "in_3",
		AmountCents: 1000,
		OrderID:     "missing",
		StoreID:     "s1",
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("expected ack for unknown order, got %v", err)
	}
}

func TestInvoiceFailedMarksPastDue(t *testing.T) {
	f := newSubFixture(t)
	sub := &domain.Subscription{ID: "sub1", ProcessorSubscriptionID: "ps_12", Status: domain.StatusActive}
	f.subs.subs["sub1"] = sub

	evt := webhookEvent(t, "evt_12", payments.EventInvoicePaymentFailed, payments.InvoicePayload{
		InvoiceID:      "in_4",
		SubscriptionID: "ps_12",
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if sub.Status != domain.StatusPastDue {
		t.Fatalf("expected PAST_DUE, got %s", sub.Status)
	}
}

func TestCancelAtPeriodEnd(t *testing.T) {
	f := newSubFixture(t)

	free := &domain.Subscription{ID: "sub-free", StoreID: "s1", Status: domain.StatusActive}
	f.subs.subs["sub-free"] = free
	tc := &domain.TenantContext{Store: &domain.Store{ID: "s1"}, Subscription: free}
	if err := f.svc.CancelAtPeriodEnd(context.Background(), tc); err != nil {
		t.Fatalf("free cancel failed: %v", err)
	}
	if !free.CancelAtPeriodEnd {
		t.Fatalf("expected local cancel flag on free plan")
	}
	if len(f.proc.cancels) != 0 {
		t.Fatalf("free plan must not call the processor")
	}

	paid := &domain.Subscription{ID: "sub-paid", StoreID: "s2", Status: domain.StatusActive, ProcessorSubscriptionID: "ps_13"}
	f.subs.subs["sub-paid"] = paid
	tc = &domain.TenantContext{Store: &domain.Store{ID: "s2"}, Subscription: paid}
	if err := f.svc.CancelAtPeriodEnd(context.Background(), tc); err != nil {
		t.Fatalf("paid cancel failed: %v", err)
	}
	if len(f.proc.cancels) != 1 || f.proc.cancels[0] != "ps_13" {
		t.Fatalf("expected processor cancel for ps_13, got %v", f.proc.cancels)
	}
	if paid.CancelAtPeriodEnd {
		t.Fatalf("local flag must wait for the processor's update event")
	}

	tc = &domain.TenantContext{Store: &domain.Store{ID: "s3"}}
	if err := f.svc.CancelAtPeriodEnd(context.Background(), tc); !errors.Is(err, domain.ErrSubscriptionRequired) {
		t.Fatalf("expected ErrSubscriptionRequired, got %v", err)
	}
}

func countActive(f *subFixture, storeID string) int {
	f.subs.mu.Lock()
	defer f.subs.mu.Unlock()
	n := 0
	for _, s := range f.subs.subs {
		if s.StoreID == storeID && s.Status.CountsAsActive() {
			n++
		}
	}
	return n
}

func TestStartCheckoutFreePlanSupersedesCurrentSubscription(t *testing.T) {
	f := newSubFixture(t, freePlan())
	owner := &domain.User{ID: "u1", Role: domain.RoleOwner, StoreID: "s1"}
	store := &domain.Store{ID: "s1", IsActive: true}

	for i := 0; i < 2; i++ {
		if _, err := f.svc.StartCheckout(context.Background(), owner, store, "plan-free", "", ""); err != nil {
			t.Fatalf("checkout %d failed: %v", i+1, err)
		}
	}
	if n := countActive(f, "s1"); n != 1 {
		t.Fatalf("expected exactly one active subscription, got %d", n)
	}
	var canceled *domain.Subscription
	for _, s := range f.subs.subs {
		if s.Status == domain.StatusCanceled {
			canceled = s
		}
	}
	if canceled == nil || canceled.CanceledAt == nil {
		t.Fatalf("expected the first subscription canceled with a timestamp, got %+v", canceled)
	}
}

func TestCheckoutCompletedSupersedesCurrentSubscription(t *testing.T) {
	f := newSubFixture(t, proPlan())
	existing := &domain.Subscription{ID: "sub-old", StoreID: "s1", PlanID: "plan-free", Status: domain.StatusActive}
	f.subs.subs["sub-old"] = existing

	evt := webhookEvent(t, "evt_upg", payments.EventCheckoutCompleted, payments.CheckoutSessionPayload{
		SessionID:      "cs_upg",
		Status:         "complete",
		CustomerID:     "cus_9",
		SubscriptionID: "ps_9",
		StoreID:        "s1",
		PlanID:         "plan-pro",
	})
	if err := f.svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	if n := countActive(f, "s1"); n != 1 {
		t.Fatalf("expected exactly one active subscription after upgrade, got %d", n)
	}
	if existing.Status != domain.StatusCanceled || existing.CanceledAt == nil {
		t.Fatalf("expected prior subscription superseded, got %+v", existing)
	}
	current, err := f.subs.GetCurrentByStore(context.Background(), "s1")
	if err != nil {
		t.Fatalf("expected a current subscription: %v", err)
	}
	if current.ProcessorSubscriptionID != "ps_9" {
		t.Fatalf("expected the new subscription to be current, got %+v", current)
	}
}

func TestWebhookSubscriptionWriteDropsCachedTenant(t *testing.T) {
	store := &domain.Store{ID: "s1", Subdomain: "shopone", IsActive: true}
	sub := activeSub("s1", "plan-basic")
	sub.ProcessorSubscriptionID = "ps_77"
	stores := newFakeStoreRepo(store)
	subs := newFakeSubRepo(sub)
	plans := newFakePlanRepo(basicPlan())
	resolver := newResolver(stores, subs, plans, nil)
	svc := NewSubscriptionService(subs, plans, newFakeUserRepo(), newFakeOrderRepo(newFakeProductRepo()), newFakeWebhookRepo(), nil, &fakeProcessor{}, resolver, &config.Config{PlatformFeeBps: 500}, nil)

	tc, err := resolver.Resolve(context.Background(), ResolveRequest{Host: "shopone.example.com"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if tc.Subscription.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE before the webhook, got %s", tc.Subscription.Status)
	}

	evt := webhookEvent(t, "evt_fail_77", payments.EventInvoicePaymentFailed, payments.InvoicePayload{
		SubscriptionID: "ps_77",
	})
	if err := svc.HandleWebhook(context.Background(), evt); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	tc, err = resolver.Resolve(context.Background(), ResolveRequest{Host: "shopone.example.com"})
	if err != nil {
		t.Fatalf("resolve after webhook failed: %v", err)
	}
	if tc.Subscription.Status != domain.StatusPastDue {
		t.Fatalf("expected resolver to see PAST_DUE immediately, got %s", tc.Subscription.Status)
	}
}
