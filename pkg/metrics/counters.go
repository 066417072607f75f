package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters, served from the same registry as the request metrics.
var (
	WebhookEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_webhook_events_processed_total",
		Help: "Webhook events reconciled successfully, by provider.",
	}, []string{"provider"})

	WebhookEventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_webhook_events_failed_total",
		Help: "Webhook events whose reconciliation returned an error, by provider.",
	}, []string{"provider"})

	PaymentsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_payments_completed_total",
		Help: "Transactions that reached completed, by provider.",
	}, []string{"provider"})
)
