package webhook

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"
)

// EventKind is the closed set of provider notifications this system acts on.
// Provider-specific event names are mapped into it at the parse boundary;
// anything outside the set decodes to EventUnknown and is acknowledged
// without processing.
type EventKind string

const (
	EventPaymentSucceeded      EventKind = "payment_succeeded"
	EventPaymentFailed         EventKind = "payment_failed"
	EventRefundApplied         EventKind = "refund_applied"
	EventSubscriptionCreated   EventKind = "subscription_created"
	EventSubscriptionUpdated   EventKind = "subscription_updated"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
	EventUnknown               EventKind = "unknown"
)

// Event is the provider-neutral form every webhook payload is reduced to
// before reconciliation.
type Event struct {
	Provider        types.PaymentProvider
	ProviderEventID string
	// RawType is the provider's own event name, kept for the audit log.
	RawType string
	Kind    EventKind

	ProviderTransactionID  string
	ProviderSubscriptionID string

	// SubscriptionStatus and PeriodEnd carry provider-reported subscription
	// state for subscription events.
	SubscriptionStatus types.SubscriptionStatus
	PeriodEnd          *time.Time
	// RenewalDisabled marks "auto-renew switched off" notifications: the
	// subscription stays effective until the period end.
	RenewalDisabled bool

	FailureReason string
	Payload       []byte
}
