package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics records payment completion, refund, and webhook outcomes.
type ReconciliationMetrics struct {
	completions          *prometheus.CounterVec
	refunds              *prometheus.CounterVec
	webhookEvents        *prometheus.CounterVec
	stockDecrementFails  prometheus.Counter
	stockRestoreFailures prometheus.Counter
}

// NewReconciliationMetrics registers the reconciliation metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_completions_total",
		Help: "Payment completion attempts by result.",
	}, []string{"result"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund attempts by result.",
	}, []string{"result"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Square webhook deliveries by outcome.",
	}, []string{"outcome"})
	stockDecrementFails := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_decrement_failures_total",
		Help: "Post-payment stock decrements that failed and need operator review.",
	})
	stockRestoreFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_restore_failures_total",
		Help: "Post-refund stock restores that failed and need operator review.",
	})
	reg.MustRegister(completions, refunds, webhookEvents, stockDecrementFails, stockRestoreFailures)
	return &ReconciliationMetrics{
		completions:          completions,
		refunds:              refunds,
		webhookEvents:        webhookEvents,
		stockDecrementFails:  stockDecrementFails,
		stockRestoreFailures: stockRestoreFailures,
	}
}

// IncCompletion counts one completion attempt with the given result label.
func (m *ReconciliationMetrics) IncCompletion(result string) {
	if m == nil || m.completions == nil {
		return
	}
	m.completions.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRefund counts one refund attempt with the given result label.
func (m *ReconciliationMetrics) IncRefund(result string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncWebhookEvent counts one webhook delivery with the given outcome label.
func (m *ReconciliationMetrics) IncWebhookEvent(outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStockDecrementFailure counts a paid order whose stock decrement failed.
func (m *ReconciliationMetrics) IncStockDecrementFailure() {
	if m == nil || m.stockDecrementFails == nil {
		return
	}
	m.stockDecrementFails.Inc()
}

// IncStockRestoreFailure counts a refunded order whose stock restore failed.
func (m *ReconciliationMetrics) IncStockRestoreFailure() {
	if m == nil || m.stockRestoreFailures == nil {
		return
	}
	m.stockRestoreFailures.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
