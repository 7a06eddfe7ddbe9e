package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/featureflags"
	"github.com/yourorg/storefront/internal/observability/metrics"
	"github.com/yourorg/storefront/pkg/cache"
	"github.com/yourorg/storefront/pkg/config"
)

// ResolveRequest carries the request attributes the resolver inspects, in
// priority order: custom domain, subdomain, explicit header, and (in
// development only) a query override.
type ResolveRequest struct {
	Host           string
	HeaderTenantID string
	QueryTenantID  string
}

// TenantResolver maps an inbound request onto exactly one store and its
// current subscription snapshot. Results are cached briefly so a burst of
// requests for the same storefront does not hammer the database.
type TenantResolver struct {
	stores domain.StoreRepository
	subs   domain.SubscriptionRepository
	plans  domain.PlanRepository
	cache  *cache.Cache
	ttl    time.Duration
	cfg    *config.Config
	logger *slog.Logger
}

// NewTenantResolver creates a new tenant resolver
func NewTenantResolver(
	stores domain.StoreRepository,
	subs domain.SubscriptionRepository,
	plans domain.PlanRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *TenantResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantResolver{
		stores: stores,
		subs:   subs,
		plans:  plans,
		cache:  cache.New(),
		ttl:    time.Duration(cfg.TenantCacheTTLSeconds) * time.Second,
		cfg:    cfg,
		logger: logger,
	}
}

// Resolve returns the tenant context for a request, or ErrTenantNotFound /
// ErrTenantInactive. The store, subscription and plan are loaded as one
// consistent snapshot; callers must not re-resolve mid-request.
func (r *TenantResolver) Resolve(ctx context.Context, req ResolveRequest) (*domain.TenantContext, error) {
	host := normalizeHost(req.Host)

	source, tc, err := r.lookup(ctx, host, req)
	if err != nil {
		metrics.ObserveTenantResolution(source, "miss")
		return nil, err
	}
	if !tc.Store.IsActive {
		metrics.ObserveTenantResolution(source, "inactive")
		return nil, domain.ErrTenantInactive
	}
	metrics.ObserveTenantResolution(source, "ok")
	return tc, nil
}

// lookup walks the resolution sources in priority order and returns the
// first hit along with the source name used for metrics.
func (r *TenantResolver) lookup(ctx context.Context, host string, req ResolveRequest) (string, *domain.TenantContext, error) {
	if host != "" && host != r.cfg.BaseDomain {
		// A verified custom domain wins over every other source.
		tc, err := r.cached(ctx, "dom:"+host, func(ctx context.Context) (*domain.Store, error) {
			return r.stores.GetByCustomDomain(ctx, host)
		})
		if err == nil {
			return "custom_domain", tc, nil
		}
		if !errors.Is(err, domain.ErrTenantNotFound) {
			return "custom_domain", nil, err
		}

		if sub, ok := r.subdomainOf(host); ok {
			tc, err := r.cached(ctx, "sub:"+sub, func(ctx context.Context) (*domain.Store, error) {
				return r.stores.GetBySubdomain(ctx, sub)
			})
			return "subdomain", tc, err
		}
		// Unknown host; fall through to explicit identifiers.
	}

	if req.HeaderTenantID != "" {
		tc, err := r.cached(ctx, "id:"+req.HeaderTenantID, func(ctx context.Context) (*domain.Store, error) {
			return r.stores.GetByID(ctx, req.HeaderTenantID)
		})
		return "header", tc, err
	}

	if req.QueryTenantID != "" && r.cfg.IsDevelopment() && featureflags.Enabled("dev_tenant_override") {
		tc, err := r.cached(ctx, "id:"+req.QueryTenantID, func(ctx context.Context) (*domain.Store, error) {
			return r.stores.GetByID(ctx, req.QueryTenantID)
		})
		return "query", tc, err
	}

	return "none", nil, domain.ErrTenantNotFound
}

// cached returns the tenant context for a cache key, loading the store and
// its subscription snapshot on a miss.
func (r *TenantResolver) cached(ctx context.Context, key string, load func(context.Context) (*domain.Store, error)) (*domain.TenantContext, error) {
	if v, ok := r.cache.Get(key); ok {
		return v.(*domain.TenantContext), nil
	}

	store, err := load(ctx)
	if err != nil {
		return nil, err
	}

	tc := &domain.TenantContext{Store: store}
	sub, err := r.subs.GetCurrentByStore(ctx, store.ID)
	switch {
	case err == nil:
		tc.Subscription = sub
		plan, err := r.plans.GetByID(ctx, sub.PlanID)
		if err != nil {
			return nil, fmt.Errorf("failed to load plan for subscription %s: %w", sub.ID, err)
		}
		tc.Plan = plan
	case errors.Is(err, domain.ErrSubscriptionRequired):
		// No current subscription; gating happens downstream.
	default:
		return nil, err
	}

	r.cache.Set(key, tc, r.ttl)
	return tc, nil
}

// InvalidateStore drops cached entries for a store after it changes.
func (r *TenantResolver) InvalidateStore(store *domain.Store) {
	r.cache.Delete("id:" + store.ID)
	r.cache.Delete("sub:" + store.Subdomain)
	if store.CustomDomain != "" {
		r.cache.Delete("dom:" + store.CustomDomain)
	}
}

// InvalidateStoreID drops cached entries when only the store id is known,
// as in webhook handlers. The record is loaded to find the domain keys; if
// the load fails only the id key is dropped.
func (r *TenantResolver) InvalidateStoreID(ctx context.Context, storeID string) {
	store, err := r.stores.GetByID(ctx, storeID)
	if err != nil {
		r.cache.Delete("id:" + storeID)
		return
	}
	r.InvalidateStore(store)
}

// subdomainOf extracts the tenant label when host is exactly one label
// under the configured base domain. Multi-level labels do not resolve.
func (r *TenantResolver) subdomainOf(host string) (string, bool) {
	suffix := "." + r.cfg.BaseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || label == "www" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// normalizeHost lowercases and strips any port from a Host header value.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
