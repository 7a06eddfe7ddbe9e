package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/security/audit"
	"github.com/yourorg/storefront/internal/security/auth"
	"github.com/yourorg/storefront/internal/security/ratelimit"
	"github.com/yourorg/storefront/internal/service"
)

type TenantContextKey struct{}
type ClaimsContextKey struct{}

// platformPaths are served at the platform level and never resolve a
// tenant: health, metrics, signup, the public plan catalog, processor
// webhooks and platform admin.
func isPlatformPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/signup", "/api/plans",
		"/api/webhooks/payments", "/api/auth/login", "/api/auth/logout":
		return true
	}
	return strings.HasPrefix(path, "/api/admin/")
}

// isPublicPath marks routes that require no authentication: health,
// signup, login, the plan catalog, webhooks (processor-authenticated) and
// public storefront browsing. Admin routes are platform paths but are
// never public.
func isPublicPath(path string, method string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/signup", "/api/plans",
		"/api/webhooks/payments", "/api/auth/login", "/api/auth/logout",
		"/api/auth/register":
		return true
	case "/api/products":
		return method == http.MethodGet
	}
	if strings.HasPrefix(path, "/api/products/") && method == http.MethodGet {
		return true
	}
	return false
}

// TenantMiddleware resolves the request's tenant once and stores the
// snapshot in the context. Platform paths pass through untouched.
func TenantMiddleware(resolver *service.TenantResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPlatformPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tc, err := resolver.Resolve(r.Context(), service.ResolveRequest{
				Host:           r.Host,
				HeaderTenantID: r.Header.Get("X-Tenant-ID"),
				QueryTenantID:  r.URL.Query().Get("tenant"),
			})
			if err != nil {
				switch {
				case err == domain.ErrTenantInactive:
					http.Error(w, `{"error":"store unavailable"}`, http.StatusForbidden)
				case err == domain.ErrTenantNotFound:
					http.Error(w, `{"error":"store not found"}`, http.StatusNotFound)
				default:
					log.Error("tenant resolution failed",
						slog.String("host", r.Host),
						slog.String("error", err.Error()),
					)
					http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), TenantContextKey{}, tc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// JWTMiddleware authenticates every request outside the public surface.
func JWTMiddleware(authService *service.AuthService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, r.Method) || strings.HasPrefix(r.URL.Path, "/ws/orders") {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := authService.VerifyToken(r.Context(), tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActiveSubscription rejects tenant operations when the store's
// subscription does not count as active. Platform admins bypass the gate.
// Distinct from unauthenticated: the caller is known, the store is not in
// good standing.
func RequireActiveSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaimsFromContext(r.Context())
		if claims != nil && claims.Role == string(domain.RoleAdmin) {
			next.ServeHTTP(w, r)
			return
		}
		tc := GetTenantFromContext(r.Context())
		if tc == nil || tc.Subscription == nil || !tc.Subscription.Status.CountsAsActive() {
			http.Error(w, `{"error":"active subscription required"}`, http.StatusPaymentRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose token does not carry one of the
// allowed roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == string(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		})
	}
}

// RateLimitMiddleware limits requests per store so one noisy tenant does
// not starve the rest.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPlatformPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			storeID := ""
			if tc := GetTenantFromContext(r.Context()); tc != nil {
				storeID = tc.Store.ID
			}

			if !limiter.Allow(storeID) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records order and store mutations before they execute.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storeID := ""
			userID := ""
			if tc := GetTenantFromContext(r.Context()); tc != nil {
				storeID = tc.Store.ID
			}
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
			}

			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/api/orders":
				auditLog.LogAction(r.Context(), storeID, userID, "create", "order", "", "initiated", "")
			case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/api/orders/"):
				auditLog.LogAction(r.Context(), storeID, userID, "update_status", "order", r.PathValue("id"), "initiated", "")
			case r.Method == http.MethodDelete && r.URL.Path == "/api/store":
				auditLog.LogAction(r.Context(), storeID, userID, "deactivate", "store", storeID, "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetTenantFromContext(ctx context.Context) *domain.TenantContext {
	if t := ctx.Value(TenantContextKey{}); t != nil {
		return t.(*domain.TenantContext)
	}
	return nil
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
