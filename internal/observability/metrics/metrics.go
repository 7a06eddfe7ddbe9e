package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	orderCommitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_order_commit_duration_seconds",
		Help:    "Duration of order commit transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	stockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stock_conflicts_total",
		Help: "Order commits aborted because stock was insufficient at commit time",
	})

	limitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_plan_limit_denials_total",
		Help: "Plan limit engine denials by resource class",
	}, []string{"resource"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
		Help: "Processor webhook events by type and result",
	}, []string{"event_type", "result"})

	processorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_processor_calls_total",
		Help: "Outbound payment processor calls by operation and result",
	}, []string{"operation", "result"})

	tenantResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_tenant_resolutions_total",
		Help: "Tenant resolution attempts by source and result",
	}, []string{"source", "result"})

	usageReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_usage_reconciliations_total",
		Help: "Plan usage reconciliation runs by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveOrderCommit records the duration of an order commit attempt with a result label.
func ObserveOrderCommit(result string, duration time.Duration) {
	orderCommitDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveStockConflict increments the stock conflict counter.
func ObserveStockConflict() {
	stockConflicts.Inc()
}

// ObserveLimitDenial increments the limit denial counter for a resource class.
func ObserveLimitDenial(resource string) {
	limitDenials.WithLabelValues(resource).Inc()
}

// ObserveWebhookEvent records a processed (or skipped/failed) webhook event.
func ObserveWebhookEvent(eventType, result string) {
	webhookEvents.WithLabelValues(eventType, result).Inc()
}

// ObserveProcessorCall records an outbound processor call result.
func ObserveProcessorCall(operation, result string) {
	processorCalls.WithLabelValues(operation, result).Inc()
}

// ObserveTenantResolution records how a request's tenant was resolved.
func ObserveTenantResolution(source, result string) {
	tenantResolutions.WithLabelValues(source, result).Inc()
}

// ObserveUsageReconciliation records a usage reconciliation pass.
func ObserveUsageReconciliation(result string) {
	usageReconciliations.WithLabelValues(result).Inc()
}
