package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yourorg/storefront/internal/domain"
)

func orderFixture() (*fakeProductRepo, *fakeOrderRepo, *domain.TenantContext) {
	products := newFakeProductRepo(
		&domain.Product{
			ID: "coffee", StoreID: "s1", Name: "Coffee", Type: domain.ProductPhysical,
			PriceCents: 500, Stock: intPtr(10), IsAvailable: true,
		},
		&domain.Product{
			ID: "ebook", StoreID: "s1", Name: "Brewing Guide", Type: domain.ProductDigital,
			PriceCents: 1500, IsAvailable: true,
		},
	)
	products.addOption(&domain.CustomizationOption{
		ID: "oat-milk", StoreID: "s1", Name: "Oat milk", PriceCents: 75,
	})
	orders := newFakeOrderRepo(products)
	tc := limitTenant(domain.PlanFeatures{MaxProducts: 100, MaxOrders: 1000, MaxStorageMB: 100})
	return products, orders, tc
}

func newOrderService(orders *fakeOrderRepo, pub *fakePublisher, proc *fakeProcessor) *OrderService {
	limits := NewLimitService(orders.products, orders, nil)
	return NewOrderService(orders, limits, pub, proc, 500, nil)
}

func TestPriceOrderComputesSubtotals(t *testing.T) {
	products, _, _ := orderFixture()
	items := []domain.OrderItemRequest{
		{
			ProductID: "coffee",
			Quantity:  2,
			Customizations: []domain.CustomizationRequest{
				{OptionID: "oat-milk", Quantity: 2, PriceCents: 75},
			},
		},
		{ProductID: "ebook", Quantity: 1},
	}

	prodMap, _ := products.AvailableByIDs(context.Background(), "s1", []string{"coffee", "ebook"})
	optMap, _ := products.OptionsByIDs(context.Background(), "s1", []string{"oat-milk"})

	order, err := PriceOrder(items, prodMap, optMap)
	if err != nil {
		t.Fatalf("pricing failed: %v", err)
	}
	// 2*500 + 2*75 = 1150, plus 1500 = 2650.
	if order.TotalCents != 2650 {
		t.Fatalf("expected total 2650, got %d", order.TotalCents)
	}
	if order.Items[0].SubtotalCents != 1150 {
		t.Fatalf("expected first line subtotal 1150, got %d", order.Items[0].SubtotalCents)
	}
	if order.Items[0].PriceCents != 500 || order.Items[0].ProductName != "Coffee" {
		t.Fatalf("expected catalog snapshot on line item, got %+v", order.Items[0])
	}
	if len(order.Items[0].Customizations) != 1 || order.Items[0].Customizations[0].Name != "Oat milk" {
		t.Fatalf("expected customization snapshot, got %+v", order.Items[0].Customizations)
	}
}

func TestPriceOrderRejectsUnknownProduct(t *testing.T) {
	products, _, _ := orderFixture()
	prodMap, _ := products.AvailableByIDs(context.Background(), "s1", []string{"coffee"})

	_, err := PriceOrder([]domain.OrderItemRequest{{ProductID: "ghost", Quantity: 1}}, prodMap, nil)
	var unavailable *domain.ProductUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ProductUnavailableError, got %v", err)
	}
	if unavailable.ProductID != "ghost" {
		t.Fatalf("expected product id in error, got %+v", unavailable)
	}
}

func TestPriceOrderRejectsInsufficientStock(t *testing.T) {
	products, _, _ := orderFixture()
	prodMap, _ := products.AvailableByIDs(context.Background(), "s1", []string{"coffee"})

	_, err := PriceOrder([]domain.OrderItemRequest{{ProductID: "coffee", Quantity: 11}}, prodMap, nil)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 11 || stockErr.Available != 10 {
		t.Fatalf("expected requested/available detail, got %+v", stockErr)
	}
}

func TestPriceOrderRejectsUnknownOption(t *testing.T) {
	products, _, _ := orderFixture()
	prodMap, _ := products.AvailableByIDs(context.Background(), "s1", []string{"coffee"})

	_, err := PriceOrder([]domain.OrderItemRequest{{
		ProductID: "coffee",
		Quantity:  1,
		Customizations: []domain.CustomizationRequest{
			{OptionID: "missing", Quantity: 1, PriceCents: 50},
		},
	}}, prodMap, map[string]*domain.CustomizationOption{})
	if !errors.Is(err, domain.ErrCustomizationNotFound) {
		t.Fatalf("expected ErrCustomizationNotFound, got %v", err)
	}
}

func TestPriceOrderRejectsPriceMismatch(t *testing.T) {
	products, _, _ := orderFixture()
	prodMap, _ := products.AvailableByIDs(context.Background(), "s1", []string{"coffee"})
	optMap, _ := products.OptionsByIDs(context.Background(), "s1", []string{"oat-milk"})

	_, err := PriceOrder([]domain.OrderItemRequest{{
		ProductID: "coffee",
		Quantity:  1,
		Customizations: []domain.CustomizationRequest{
			{OptionID: "oat-milk", Quantity: 1, PriceCents: 1}, // catalog says 75
		},
	}}, prodMap, optMap)
	if !errors.Is(err, domain.ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch, got %v", err)
	}
}

func TestCreateOrderCommitsAndPublishes(t *testing.T) {
	products, orders, tc := orderFixture()
	pub := &fakePublisher{}
	svc := newOrderService(orders, pub, &fakeProcessor{})

	order, err := svc.CreateOrder(context.Background(), tc, CreateOrderParams{
		UserID:          "u1",
		PaymentMethod:   "card",
		DeliveryAddress: "1 Main St",
		Items: []domain.OrderItemRequest{
			{ProductID: "coffee", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.Status != domain.OrderInPreparation {
		t.Fatalf("expected IN_PREPARATION, got %s", order.Status)
	}
	if order.TotalCents != 1500 {
		t.Fatalf("expected total 1500, got %d", order.TotalCents)
	}
	if got := *products.products["coffee"].Stock; got != 7 {
		t.Fatalf("expected stock decremented to 7, got %d", got)
	}
	if len(pub.created) != 1 || pub.created[0].OrderID != order.ID {
		t.Fatalf("expected one OrderCreated event for %s, got %+v", order.ID, pub.created)
	}

	stored, err := orders.GetByID(context.Background(), "s1", order.ID)
	if err != nil {
		t.Fatalf("expected order persisted: %v", err)
	}
	if stored.TotalCents != 1500 {
		t.Fatalf("persisted total mismatch: %d", stored.TotalCents)
	}
}

func TestCreateOrderDigitalSkipsStock(t *testing.T) {
	products, orders, tc := orderFixture()
	svc := newOrderService(orders, &fakePublisher{}, &fakeProcessor{})

	_, err := svc.CreateOrder(context.Background(), tc, CreateOrderParams{
		UserID: "u1",
		Items:  []domain.OrderItemRequest{{ProductID: "ebook", Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := *products.products["coffee"].Stock; got != 10 {
		t.Fatalf("digital order must not touch stock, got %d", got)
	}
}

func TestCreateOrderRollsBackOnStockConflict(t *testing.T) {
	products, orders, tc := orderFixture()
	pub := &fakePublisher{}
	svc := newOrderService(orders, pub, &fakeProcessor{})

	_, err := svc.CreateOrder(context.Background(), tc, CreateOrderParams{
		UserID: "u1",
		Items: []domain.OrderItemRequest{
			{ProductID: "coffee", Quantity: 4},
			{ProductID: "ghost", Quantity: 1},
		},
	})
	var unavailable *domain.ProductUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ProductUnavailableError, got %v", err)
	}
	if got := *products.products["coffee"].Stock; got != 10 {
		t.Fatalf("expected stock restored after rollback, got %d", got)
	}
	if len(orders.orders) != 0 {
		t.Fatalf("expected no order rows after rollback, got %d", len(orders.orders))
	}
	if len(pub.created) != 0 {
		t.Fatalf("expected no events for failed commit, got %+v", pub.created)
	}
}

func TestCreateOrderRejectsBadQuantities(t *testing.T) {
	_, orders, tc := orderFixture()
	svc := newOrderService(orders, &fakePublisher{}, &fakeProcessor{})

	cases := []CreateOrderParams{
		{UserID: "u1"},
		{UserID: "u1", Items: []domain.OrderItemRequest{{ProductID: "coffee", Quantity: 0}}},
		{UserID: "u1", Items: []domain.OrderItemRequest{{
			ProductID: "coffee", Quantity: 1,
			Customizations: []domain.CustomizationRequest{{OptionID: "oat-milk", Quantity: 0, PriceCents: 75}},
		}}},
	}
	for i, params := range cases {
		if _, err := svc.CreateOrder(context.Background(), tc, params); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("case %d: expected ErrInvalidQuantity, got %v", i, err)
		}
	}
}

func TestCreateOrderEnforcesOrderLimit(t *testing.T) {
	_, orders, tc := orderFixture()
	tc.Plan.Features.MaxOrders = 1
	svc := newOrderService(orders, &fakePublisher{}, &fakeProcessor{})

	params := CreateOrderParams{
		UserID: "u1",
		Items:  []domain.OrderItemRequest{{ProductID: "coffee", Quantity: 1}},
	}
	if _, err := svc.CreateOrder(context.Background(), tc, params); err != nil {
		t.Fatalf("first order failed: %v", err)
	}
	_, err := svc.CreateOrder(context.Background(), tc, params)
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if limitErr.Resource != domain.ResourceOrders {
		t.Fatalf("expected orders resource, got %+v", limitErr)
	}
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	products, orders, tc := orderFixture()
	const stock = 10
	*products.products["coffee"].Stock = stock
	svc := newOrderService(orders, &fakePublisher{}, &fakeProcessor{})

	const attempts = 25
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateOrder(context.Background(), tc, CreateOrderParams{
				UserID: fmt.Sprintf("u%d", i),
				Items:  []domain.OrderItemRequest{{ProductID: "coffee", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if succeeded != stock {
		t.Fatalf("expected exactly %d commits to win, got %d", stock, succeeded)
	}
	if got := *products.products["coffee"].Stock; got != 0 {
		t.Fatalf("expected stock exhausted, got %d", got)
	}
	if len(orders.orders) != stock {
		t.Fatalf("expected %d order rows, got %d", stock, len(orders.orders))
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	_, orders, tc := orderFixture()
	pub := &fakePublisher{}
	svc := newOrderService(orders, pub, &fakeProcessor{})

	order, err := svc.CreateOrder(context.Background(), tc, CreateOrderParams{
		UserID: "u1",
		Items:  []domain.OrderItemRequest{{ProductID: "coffee", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), tc, order.ID, domain.OrderShipped)
	if err != nil {
		t.Fatalf("transition to SHIPPED failed: %v", err)
	}
	if updated.Status != domain.OrderShipped {
		t.Fatalf("expected SHIPPED, got %s", updated.Status)
	}
	if len(pub.status) != 1 || pub.status[0].From != "IN_PREPARATION" || pub.status[0].To != "SHIPPED" {
		t.Fatalf("expected status event IN_PREPARATION->SHIPPED, got %+v", pub.status)
	}

	if _, err := svc.UpdateStatus(context.Background(), tc, order.ID, domain.OrderCanceled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for SHIPPED->CANCELED, got %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), tc, order.ID, domain.OrderDelivered); err != nil {
		t.Fatalf("transition to DELIVERED failed: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), tc, order.ID, domain.OrderShipped); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected terminal DELIVERED to reject transitions, got %v", err)
	}
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	_, orders, tc := orderFixture()
	svc := newOrderService(orders, &fakePublisher{}, &fakeProcessor{})

	if _, err := svc.UpdateStatus(context.Background(), tc, "nope", domain.OrderShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestPayOrderRequiresChargesEnabled(t *testing.T) {
	_, orders, tc := orderFixture()
	svc := newOrderService(orders, &fakePublisher{}, &fakeProcessor{})

	if _, err := svc.PayOrder(context.Background(), tc, "o1"); err == nil {
		t.Fatalf("expected error when store has no payout account")
	}
}

func TestPayOrderCreatesConnectedIntent(t *testing.T) {
	_, orders, tc := orderFixture()
	tc.Store.ProcessorAccountID = "acct_s1"
	tc.Store.ChargesEnabled = true
	proc := &fakeProcessor{}
	svc := newOrderService(orders, &fakePublisher{}, proc)

	order, err := svc.CreateOrder(context.Background(), tc, CreateOrderParams{
		UserID: "u1",
		Items:  []domain.OrderItemRequest{{ProductID: "coffee", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	intent, err := svc.PayOrder(context.Background(), tc, order.ID)
	if err != nil {
		t.Fatalf("pay failed: %v", err)
	}
	if intent.AmountCents != 1000 {
		t.Fatalf("expected intent for 1000 cents, got %d", intent.AmountCents)
	}
	// 5% of 1000 = 50.
	if intent.PlatformFeeCents != 50 {
		t.Fatalf("expected 50 cent platform fee, got %d", intent.PlatformFeeCents)
	}
	if len(proc.intents) != 1 || proc.intents[0].DestinationAccount != "acct_s1" {
		t.Fatalf("expected intent routed to acct_s1, got %+v", proc.intents)
	}
}
