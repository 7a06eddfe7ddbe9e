package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/events"
	"github.com/yourorg/storefront/internal/payments"
)

// In-memory doubles for the repository interfaces. The order repository's
// InTx serializes callers with a mutex the way row locks do in Postgres,
// and restores stock on error the way a rollback does.

type fakeStoreRepo struct {
	mu     sync.Mutex
	stores map[string]*domain.Store
}

func newFakeStoreRepo(stores ...*domain.Store) *fakeStoreRepo {
	r := &fakeStoreRepo{stores: make(map[string]*domain.Store)}
	for _, s := range stores {
		r.stores[s.ID] = s
	}
	return r
}

func (r *fakeStoreRepo) Create(_ context.Context, s *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	for _, existing := range r.stores {
		if existing.Subdomain == s.Subdomain {
			return domain.ErrSubdomainTaken
		}
	}
	s.CreatedAt = time.Now()
	r.stores[s.ID] = s
	return nil
}

func (r *fakeStoreRepo) GetByID(_ context.Context, id string) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[id]; ok {
		return s, nil
	}
	return nil, domain.ErrTenantNotFound
}

func (r *fakeStoreRepo) GetBySubdomain(_ context.Context, subdomain string) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.Subdomain == subdomain {
			return s, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (r *fakeStoreRepo) GetByCustomDomain(_ context.Context, d string) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.CustomDomain != "" && s.CustomDomain == d {
			return s, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (r *fakeStoreRepo) GetByProcessorAccountID(_ context.Context, accountID string) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		if s.ProcessorAccountID == accountID {
			return s, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (r *fakeStoreRepo) Update(_ context.Context, s *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[s.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	r.stores[s.ID] = s
	return nil
}

func (r *fakeStoreRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	if !ok || !s.IsActive {
		return domain.ErrTenantNotFound
	}
	s.IsActive = false
	s.Subdomain = s.Subdomain + "-deleted"
	s.CustomDomain = ""
	return nil
}

func (r *fakeStoreRepo) List(_ context.Context) ([]*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	return out, nil
}

type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
}

func newFakeSubRepo(subs ...*domain.Subscription) *fakeSubRepo {
	r := &fakeSubRepo{subs: make(map[string]*domain.Subscription)}
	for _, s := range subs {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeSubRepo) Create(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now()
	r.subs[sub.ID] = sub
	return nil
}

func (r *fakeSubRepo) GetByID(_ context.Context, id string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[id]; ok {
		return s, nil
	}
	return nil, domain.ErrSubscriptionRequired
}

func (r *fakeSubRepo) GetCurrentByStore(_ context.Context, storeID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*domain.Subscription
	for _, s := range r.subs {
		if s.StoreID != storeID {
			continue
		}
		switch s.Status {
		case domain.StatusActive, domain.StatusTrialing, domain.StatusPastDue:
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrSubscriptionRequired
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return candidates[0], nil
}

func (r *fakeSubRepo) GetByProcessorID(_ context.Context, processorID string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ProcessorSubscriptionID == processorID {
			return s, nil
		}
	}
	return nil, domain.ErrSubscriptionRequired
}

func (r *fakeSubRepo) Update(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ID]; !ok {
		return domain.ErrSubscriptionRequired
	}
	r.subs[sub.ID] = sub
	return nil
}

type fakePlanRepo struct {
	mu    sync.Mutex
	plans map[string]*domain.SubscriptionPlan
}

func newFakePlanRepo(plans ...*domain.SubscriptionPlan) *fakePlanRepo {
	r := &fakePlanRepo{plans: make(map[string]*domain.SubscriptionPlan)}
	for _, p := range plans {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		r.plans[p.ID] = p
	}
	return r
}

func (r *fakePlanRepo) Create(_ context.Context, p *domain.SubscriptionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.plans[p.ID] = p
	return nil
}

func (r *fakePlanRepo) GetByID(_ context.Context, id string) (*domain.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.plans[id]; ok {
		return p, nil
	}
	return nil, domain.ErrPlanNotFound
}

func (r *fakePlanRepo) Update(_ context.Context, p *domain.SubscriptionPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[p.ID]; !ok {
		return domain.ErrPlanNotFound
	}
	r.plans[p.ID] = p
	return nil
}

func (r *fakePlanRepo) ListActive(_ context.Context) ([]*domain.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SubscriptionPlan
	for _, p := range r.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	options  map[string]*domain.CustomizationOption
	photos   int
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{
		products: make(map[string]*domain.Product),
		options:  make(map[string]*domain.CustomizationOption),
	}
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) addOption(o *domain.CustomizationOption) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	r.options[o.ID] = o
}

func (r *fakeProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, storeID, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok && p.StoreID == storeID {
		return p, nil
	}
	return nil, &domain.ProductUnavailableError{ProductID: id}
}

func (r *fakeProductRepo) AvailableByIDs(_ context.Context, storeID string, ids []string) (map[string]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*domain.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok && p.StoreID == storeID && p.IsAvailable {
			out[id] = p
		}
	}
	return out, nil
}

func (r *fakeProductRepo) OptionsByIDs(_ context.Context, storeID string, ids []string) (map[string]*domain.CustomizationOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*domain.CustomizationOption)
	for _, id := range ids {
		if o, ok := r.options[id]; ok && o.StoreID == storeID {
			out[id] = o
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.products[p.ID]; !ok || existing.StoreID != p.StoreID {
		return &domain.ProductUnavailableError{ProductID: p.ID}
	}
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) AddPhoto(_ context.Context, storeID string, photo *domain.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[photo.ProductID]
	if !ok || p.StoreID != storeID {
		return &domain.ProductUnavailableError{ProductID: photo.ProductID}
	}
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	r.photos++
	return nil
}

func (r *fakeProductRepo) CountByStore(_ context.Context, storeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.products {
		if p.StoreID == storeID {
			n++
		}
	}
	return n, nil
}

func (r *fakeProductRepo) PhotoCountByStore(_ context.Context, _ string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.photos, nil
}

func (r *fakeProductRepo) ListByStore(_ context.Context, storeID string) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.products {
		if p.StoreID == storeID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	mu       sync.Mutex
	products *fakeProductRepo
	orders   map[string]*domain.Order
}

func newFakeOrderRepo(products *fakeProductRepo) *fakeOrderRepo {
	return &fakeOrderRepo{products: products, orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) InTx(_ context.Context, fn func(tx domain.OrderTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := make(map[string]int)
	r.products.mu.Lock()
	for id, p := range r.products.products {
		if p.Stock != nil {
			saved[id] = *p.Stock
		}
	}
	r.products.mu.Unlock()

	tx := &fakeOrderTx{repo: r}
	if err := fn(tx); err != nil {
		r.products.mu.Lock()
		for id, v := range saved {
			stock := v
			r.products.products[id].Stock = &stock
		}
		r.products.mu.Unlock()
		return err
	}
	for _, o := range tx.inserted {
		r.orders[o.ID] = o
	}
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, storeID, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok && o.StoreID == storeID {
		cp := *o
		return &cp, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (r *fakeOrderRepo) ListByStore(_ context.Context, storeID string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.StoreID == storeID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, storeID, userID string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.StoreID == storeID && o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, storeID, id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.StoreID != storeID {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (r *fakeOrderRepo) SetPaymentSplit(_ context.Context, storeID, id string, platformFee, merchant int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.StoreID != storeID {
		return domain.ErrOrderNotFound
	}
	o.PlatformFeeCents = platformFee
	o.MerchantCents = merchant
	return nil
}

func (r *fakeOrderRepo) CountInPeriod(_ context.Context, storeID string, start, end time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.StoreID == storeID && !o.CreatedAt.Before(start) && o.CreatedAt.Before(end) {
			n++
		}
	}
	return n, nil
}

type fakeOrderTx struct {
	repo     *fakeOrderRepo
	inserted []*domain.Order
}

func (tx *fakeOrderTx) ProductsForUpdate(ctx context.Context, storeID string, ids []string) (map[string]*domain.Product, error) {
	return tx.repo.products.AvailableByIDs(ctx, storeID, ids)
}

func (tx *fakeOrderTx) OptionsByIDs(ctx context.Context, storeID string, ids []string) (map[string]*domain.CustomizationOption, error) {
	return tx.repo.products.OptionsByIDs(ctx, storeID, ids)
}

func (tx *fakeOrderTx) DecrementStock(_ context.Context, productID string, qty int) error {
	tx.repo.products.mu.Lock()
	defer tx.repo.products.mu.Unlock()
	p, ok := tx.repo.products.products[productID]
	if !ok || p.Stock == nil {
		return &domain.ProductUnavailableError{ProductID: productID}
	}
	if *p.Stock < qty {
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: *p.Stock}
	}
	remaining := *p.Stock - qty
	p.Stock = &remaining
	return nil
}

func (tx *fakeOrderTx) InsertOrder(_ context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now()
	tx.inserted = append(tx.inserted, o)
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && u.IsActive {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) ListByStore(_ context.Context, storeID string) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.StoreID == storeID {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeWebhookRepo struct {
	mu        sync.Mutex
	processed map[string]bool
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{processed: make(map[string]bool)}
}

func (r *fakeWebhookRepo) MarkProcessed(_ context.Context, eventID, _ string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[eventID] {
		return false, nil
	}
	r.processed[eventID] = true
	return true, nil
}

func (r *fakeWebhookRepo) Forget(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processed, eventID)
	return nil
}

type fakeProcessor struct {
	mu sync.Mutex

	customers        int
	checkoutSessions []payments.CheckoutParams
	intents          []payments.IntentParams
	cancels          []string
	subscription     *payments.SubscriptionPayload
	err              error
}

func (p *fakeProcessor) CreateCustomer(_ context.Context, email, name string) (*payments.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.customers++
	return &payments.Customer{ID: "cus_" + uuid.NewString()[:8], Email: email, Name: name}, nil
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.checkoutSessions = append(p.checkoutSessions, params)
	return &payments.CheckoutSession{ID: "cs_test", URL: "https://checkout.example.com/cs_test"}, nil
}

func (p *fakeProcessor) CreateConnectedAccount(_ context.Context, storeID, _ string) (*payments.ConnectedAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &payments.ConnectedAccount{ID: "acct_" + storeID, OnboardingURL: "https://onboard.example.com/" + storeID}, nil
}

func (p *fakeProcessor) CreatePaymentIntent(_ context.Context, params payments.IntentParams) (*payments.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.intents = append(p.intents, params)
	fee, _ := payments.Split(params.AmountCents, params.FeeBps)
	return &payments.PaymentIntent{
		ID:               "pi_test",
		ClientSecret:     "pi_test_secret",
		AmountCents:      params.AmountCents,
		PlatformFeeCents: fee,
	}, nil
}

func (p *fakeProcessor) GetSubscription(_ context.Context, subscriptionID string) (*payments.SubscriptionPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.subscription != nil {
		return p.subscription, nil
	}
	now := time.Now().UTC()
	return &payments.SubscriptionPayload{
		SubscriptionID:     subscriptionID,
		Status:             "ACTIVE",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}, nil
}

func (p *fakeProcessor) CancelSubscriptionAtPeriodEnd(_ context.Context, subscriptionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancels = append(p.cancels, subscriptionID)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []events.OrderCreatedPayload
	status  []events.OrderStatusChangedPayload
}

func (p *fakePublisher) PublishOrderCreated(_ string, payload events.OrderCreatedPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, payload)
}

func (p *fakePublisher) PublishOrderStatusChanged(_ string, payload events.OrderStatusChangedPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, payload)
}

func (p *fakePublisher) Close() error { return nil }

func intPtr(v int) *int { return &v }
