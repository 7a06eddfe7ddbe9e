package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/events"
	"github.com/yourorg/storefront/internal/handler"
	"github.com/yourorg/storefront/internal/infrastructure/logger"
	"github.com/yourorg/storefront/internal/infrastructure/redis"
	"github.com/yourorg/storefront/internal/observability/tracing"
	"github.com/yourorg/storefront/internal/payments"
	"github.com/yourorg/storefront/internal/repository"
	"github.com/yourorg/storefront/internal/security"
	"github.com/yourorg/storefront/internal/security/audit"
	"github.com/yourorg/storefront/internal/security/auth"
	"github.com/yourorg/storefront/internal/security/middleware"
	"github.com/yourorg/storefront/internal/security/ratelimit"
	"github.com/yourorg/storefront/internal/service"
	"github.com/yourorg/storefront/internal/worker"
	"github.com/yourorg/storefront/pkg/config"
	"github.com/yourorg/storefront/pkg/database"
)

func main() {
	// 1. Load configuration
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting storefront server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, log, "storefront", cfg.Environment)
	if err != nil {
		log.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// 4. Initialize PostgreSQL
	pool, err := database.NewConnectionPool(ctx, database.FromEnv(), log)
	if err != nil {
		log.Error("failed to connect to PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Error("failed to ensure schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Initialize Redis. Soft dependency: the resolver falls back to the
	// database and token revocation degrades without it.
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, running degraded", slog.String("error", err.Error()))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// 6. Initialize event publishing: Kafka for downstream consumers plus
	// an in-process hub for the live dashboard feed.
	producer := events.NewProducer(cfg.KafkaBrokers, "storefront", 256, log)
	go producer.Start(ctx)
	hub := events.NewHub()
	publisher := events.Fanout{producer, hub}

	// 7. Initialize payment processor client
	processor := payments.NewHTTPProcessor(
		cfg.ProcessorBaseURL,
		os.Getenv("PROCESSOR_API_KEY"),
		time.Duration(cfg.ProcessorTimeoutSecs)*time.Second,
		log,
	)

	// 8. Initialize repositories
	storeRepo := repository.NewPostgresStoreRepository(db, log)
	userRepo := repository.NewPostgresUserRepository(db, log)
	planRepo := repository.NewPostgresPlanRepository(db, log)
	subRepo := repository.NewPostgresSubscriptionRepository(db, log)
	productRepo := repository.NewPostgresProductRepository(db, log)
	orderRepo := repository.NewPostgresOrderRepository(db, log)
	usageRepo := repository.NewPostgresUsageRepository(db, log)
	webhookRepo := repository.NewPostgresWebhookEventRepository(db, log)

	// 9. Initialize services
	tokenManager := auth.NewTokenManager(os.Getenv("JWT_SECRET"), "storefront")
	resolver := service.NewTenantResolver(storeRepo, subRepo, planRepo, cfg, log)
	limits := service.NewLimitService(productRepo, orderRepo, log)
	authService := service.NewAuthService(userRepo, subRepo, redisClient, tokenManager, log)
	orderService := service.NewOrderService(orderRepo, limits, publisher, processor, cfg.PlatformFeeBps, log)
	subscriptionService := service.NewSubscriptionService(subRepo, planRepo, userRepo, orderRepo, webhookRepo, redisClient, processor, resolver, cfg, log)
	storeService := service.NewStoreService(storeRepo, userRepo, processor, resolver, log)
	catalogService := service.NewCatalogService(productRepo, limits, log)
	planService := service.NewPlanService(planRepo, log)

	// 10. Initialize handlers
	signupHandler := handler.NewSignupHandler(storeService, log, cfg)
	rateLimiter := ratelimit.NewLimiter(100, time.Minute) // per store per minute
	loginHandler := handler.NewLoginHandler(authService, rateLimiter, log)
	logoutHandler := handler.NewLogoutHandler(authService, log)
	registerHandler := handler.NewRegisterHandler(authService, log)
	plansHandler := handler.NewPlansHandler(planService, log)
	productsHandler := handler.NewProductsHandler(catalogService, log)
	authorizer := security.NewAuthorizer(log)
	ordersHandler := handler.NewOrdersHandler(orderService, authorizer, log)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, userRepo, log)
	webhookHandler := handler.NewWebhookHandler(subscriptionService, log)
	storeHandler := handler.NewStoreHandler(storeService, userRepo, log)
	orderFeedHandler := handler.NewOrderFeedHandler(hub, authService, log, cfg.CORSAllowedOrigins)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	auditLogger := audit.NewLogger(log)

	requireOwner := middleware.RequireRole(domain.RoleOwner, domain.RoleAdmin)
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)
	gated := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireActiveSubscription(h)
	}

	// 11. Setup HTTP routes
	mux := http.NewServeMux()

	// Platform surface
	mux.Handle("POST /api/signup", signupHandler)
	mux.Handle("POST /api/auth/login", loginHandler)
	mux.Handle("POST /api/auth/logout", logoutHandler)
	mux.HandleFunc("GET /api/plans", plansHandler.List)
	mux.Handle("POST /api/webhooks/payments", webhookHandler)
	mux.Handle("POST /api/admin/plans", requireAdmin(http.HandlerFunc(plansHandler.Create)))
	mux.Handle("PUT /api/admin/plans/{id}", requireAdmin(http.HandlerFunc(plansHandler.Update)))

	// Storefront surface (tenant-resolved)
	mux.Handle("POST /api/auth/register", registerHandler)
	mux.HandleFunc("GET /api/products", productsHandler.List)
	mux.HandleFunc("GET /api/products/{id}", productsHandler.Get)
	mux.Handle("POST /api/products", requireOwner(gated(productsHandler.Create)))
	mux.Handle("PUT /api/products/{id}", requireOwner(gated(productsHandler.Update)))
	mux.Handle("POST /api/products/{id}/photos", requireOwner(gated(productsHandler.AddPhoto)))
	mux.Handle("POST /api/orders", gated(ordersHandler.Create))
	mux.HandleFunc("GET /api/orders", ordersHandler.List)
	mux.HandleFunc("GET /api/orders/{id}", ordersHandler.Get)
	mux.Handle("PATCH /api/orders/{id}/status", requireOwner(http.HandlerFunc(ordersHandler.UpdateStatus)))
	mux.HandleFunc("POST /api/orders/{id}/pay", ordersHandler.Pay)
	mux.HandleFunc("GET /api/subscription", subscriptionHandler.Current)
	mux.Handle("POST /api/subscription/checkout", requireOwner(http.HandlerFunc(subscriptionHandler.Checkout)))
	mux.Handle("POST /api/subscription/cancel", requireOwner(http.HandlerFunc(subscriptionHandler.Cancel)))
	mux.HandleFunc("GET /api/store", storeHandler.Get)
	mux.Handle("PUT /api/store", requireOwner(http.HandlerFunc(storeHandler.Update)))
	mux.Handle("POST /api/store/onboarding", requireOwner(http.HandlerFunc(storeHandler.StartOnboarding)))
	mux.Handle("DELETE /api/store", requireOwner(http.HandlerFunc(storeHandler.Deactivate)))
	mux.Handle("GET /ws/orders", orderFeedHandler)

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Tenant-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> path hygiene -> body limit ->
	// content type -> tenant -> JWT -> rate limit -> audit -> CORS+mux.
	// Tenant resolution runs before the rate limiter so limits key on the
	// store, and before JWT so handlers see both contexts.
	rootHandler := withRequestID(
		middleware.SanitizePaths(log)(
			middleware.LimitBodySize(
				middleware.ValidateJSONContentType(log)(
					middleware.TenantMiddleware(resolver, log)(
						middleware.JWTMiddleware(authService, log)(
							middleware.RateLimitMiddleware(rateLimiter, log)(
								middleware.AuditMiddleware(auditLogger)(handlerWithCORS),
							),
						),
					),
				),
			),
		),
		log,
	)

	// 12. Start usage reconciliation worker in background
	usageWorker := worker.NewUsageWorker(
		storeRepo,
		subRepo,
		productRepo,
		orderRepo,
		usageRepo,
		log,
		time.Duration(cfg.UsageIntervalMinutes)*time.Minute,
	)
	go usageWorker.Start(ctx)

	// 13. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("base_domain", cfg.BaseDomain),
		slog.Int("platform_fee_bps", cfg.PlatformFeeBps),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop workers and the producer loop
	if err := publisher.Close(); err != nil {
		log.Error("publisher close error", slog.String("error", err.Error()))
	}
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
