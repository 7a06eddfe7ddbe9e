package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/storefront/internal/domain"
	"github.com/yourorg/storefront/internal/observability/metrics"
	"github.com/yourorg/storefront/internal/reliability/circuitbreaker"
	"github.com/yourorg/storefront/internal/reliability/retry"
)

// Customer is a billing customer on the processor side.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession is a hosted checkout the buyer is redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ConnectedAccount is a merchant payout account on the processor side.
type ConnectedAccount struct {
	ID             string `json:"id"`
	OnboardingURL  string `json:"onboarding_url"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	ChargesEnabled bool   `json:"charges_enabled"`
}

// PaymentIntent is a connected payment carrying a platform fee and a
// transfer destination.
type PaymentIntent struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	AmountCents      int64  `json:"amount"`
	PlatformFeeCents int64  `json:"application_fee_amount"`
}

// CheckoutParams starts a subscription checkout for a store and plan.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	StoreID    string
	PlanID     string
	TrialDays  int
	SuccessURL string
	CancelURL  string
}

// IntentParams creates a connected payment for an order.
type IntentParams struct {
	AmountCents        int64
	Currency           string
	OrderID            string
	StoreID            string
	DestinationAccount string
	FeeBps             int
}

// Processor is the outbound payment processor API the core consumes.
// Every call has a bounded timeout and fails closed on timeout.
type Processor interface {
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreateConnectedAccount(ctx context.Context, storeID, email string) (*ConnectedAccount, error)
	CreatePaymentIntent(ctx context.Context, p IntentParams) (*PaymentIntent, error)
	// GetSubscription fetches the authoritative subscription state; used
	// when a checkout completes before the subscription events arrive.
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

// HTTPProcessor implements Processor against an HTTP API. Calls go through
// a circuit breaker and a bounded retry; the transport is traced.
type HTTPProcessor struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	logger  *slog.Logger
}

// NewHTTPProcessor creates an HTTP processor client with the given call
// timeout.
func NewHTTPProcessor(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProcessor{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		retry:   retry.DefaultConfig(),
		logger:  logger,
	}
}

// CreateCustomer creates (or fetches by email on the processor's side) a
// billing customer.
func (p *HTTPProcessor) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	return call[Customer](ctx, p, "create_customer", "/v1/customers", map[string]any{
		"email": email,
		"name":  name,
	})
}

// CreateCheckoutSession starts a hosted subscription checkout.
func (p *HTTPProcessor) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body := map[string]any{
		"customer":    params.CustomerID,
		"mode":        "subscription",
		"price":       params.PriceID,
		"success_url": params.SuccessURL,
		"cancel_url":  params.CancelURL,
		"metadata": map[string]string{
			"store_id": params.StoreID,
			"plan_id":  params.PlanID,
		},
	}
	if params.TrialDays > 0 {
		body["trial_period_days"] = params.TrialDays
	}
	return call[CheckoutSession](ctx, p, "create_checkout_session", "/v1/checkout/sessions", body)
}

// CreateConnectedAccount creates a merchant payout account and an
// onboarding link for it.
func (p *HTTPProcessor) CreateConnectedAccount(ctx context.Context, storeID, email string) (*ConnectedAccount, error) {
	return call[ConnectedAccount](ctx, p, "create_connected_account", "/v1/accounts", map[string]any{
		"email": email,
		"capabilities": []string{"card_payments", "transfers"},
		"metadata": map[string]string{
			"store_id": storeID,
		},
	})
}

// CreatePaymentIntent creates a connected payment for an order: the
// platform fee is withheld and the remainder transferred to the store's
// payout account.
func (p *HTTPProcessor) CreatePaymentIntent(ctx context.Context, params IntentParams) (*PaymentIntent, error) {
	fee, _ := Split(params.AmountCents, params.FeeBps)
	return call[PaymentIntent](ctx, p, "create_payment_intent", "/v1/payment_intents", map[string]any{
		"amount":                 params.AmountCents,
		"currency":               params.Currency,
		"application_fee_amount": fee,
		"transfer_destination":   params.DestinationAccount,
		"metadata": map[string]string{
			"order_id": params.OrderID,
			"store_id": params.StoreID,
		},
	})
}

// GetSubscription fetches the processor's current view of a subscription.
func (p *HTTPProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error) {
	if !p.breaker.AllowRequest() {
		metrics.ObserveProcessorCall("get_subscription", "circuit_open")
		return nil, &domain.UpstreamError{Op: "get_subscription", Err: fmt.Errorf("circuit open")}
	}
	out, err := retry.Do(ctx, p.retry, p.logger, "get_subscription", func(ctx context.Context) (*SubscriptionPayload, error) {
		return get[SubscriptionPayload](ctx, p, "/v1/subscriptions/"+subscriptionID)
	})
	if err != nil {
		p.breaker.RecordFailure()
		metrics.ObserveProcessorCall("get_subscription", "error")
		return nil, &domain.UpstreamError{Op: "get_subscription", Err: err}
	}
	p.breaker.RecordSuccess()
	metrics.ObserveProcessorCall("get_subscription", "success")
	return out, nil
}

// CancelSubscriptionAtPeriodEnd flags a processor subscription to lapse at
// the end of its current period.
func (p *HTTPProcessor) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	_, err := call[struct{}](ctx, p, "cancel_subscription",
		"/v1/subscriptions/"+subscriptionID, map[string]any{
			"cancel_at_period_end": true,
		})
	return err
}

// call posts a JSON body and decodes a JSON response, recording metrics
// and honoring the circuit breaker. Failures surface as UpstreamError so
// callers fail closed.
func call[T any](ctx context.Context, p *HTTPProcessor, op, path string, body any) (*T, error) {
	if !p.breaker.AllowRequest() {
		metrics.ObserveProcessorCall(op, "circuit_open")
		return nil, &domain.UpstreamError{Op: op, Err: fmt.Errorf("circuit open")}
	}

	out, err := retry.Do(ctx, p.retry, p.logger, op, func(ctx context.Context) (*T, error) {
		return post[T](ctx, p, path, body)
	})
	if err != nil {
		p.breaker.RecordFailure()
		metrics.ObserveProcessorCall(op, "error")
		return nil, &domain.UpstreamError{Op: op, Err: err}
	}
	p.breaker.RecordSuccess()
	metrics.ObserveProcessorCall(op, "success")
	return out, nil
}

func get[T any](ctx context.Context, p *HTTPProcessor, path string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return do[T](p, req)
}

func post[T any](ctx context.Context, p *HTTPProcessor, path string, body any) (*T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return do[T](p, req)
}

func do[T any](p *HTTPProcessor, req *http.Request) (*T, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("processor returned %d: %s", resp.StatusCode, string(msg))
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
