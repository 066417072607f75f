package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/paywall/pkg/types"
)

type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripePaymentIntent struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeCharge struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

type stripeSubscription struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

type stripeInvoice struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	PaymentIntent string `json:"payment_intent"`
}

// ParseStripe reduces a verified Stripe event body to the neutral Event form.
func ParseStripe(body []byte) (*Event, error) {
	var env stripeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed stripe event: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("stripe event missing id")
	}

	ev := &Event{
		Provider:        types.PaymentProviderStripe,
		ProviderEventID: env.ID,
		RawType:         env.Type,
		Kind:            EventUnknown,
		Payload:         body,
	}

	switch env.Type {
	case "payment_intent.succeeded":
		var pi stripePaymentIntent
		if err := json.Unmarshal(env.Data.Object, &pi); err != nil {
			return nil, fmt.Errorf("malformed stripe payment_intent: %w", err)
		}
		ev.Kind = EventPaymentSucceeded
		ev.ProviderTransactionID = pi.ID

	case "payment_intent.payment_failed":
		var pi stripePaymentIntent
		if err := json.Unmarshal(env.Data.Object, &pi); err != nil {
			return nil, fmt.Errorf("malformed stripe payment_intent: %w", err)
		}
		ev.Kind = EventPaymentFailed
		ev.ProviderTransactionID = pi.ID
		if pi.LastPaymentError != nil {
			ev.FailureReason = pi.LastPaymentError.Message
		}

	case "charge.refunded":
		var ch stripeCharge
		if err := json.Unmarshal(env.Data.Object, &ch); err != nil {
			return nil, fmt.Errorf("malformed stripe charge: %w", err)
		}
		ev.Kind = EventRefundApplied
		ev.ProviderTransactionID = ch.PaymentIntent

	case "invoice.payment_succeeded":
		// recurring charge confirmation; carries the subscription it funds
		var inv stripeInvoice
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return nil, fmt.Errorf("malformed stripe invoice: %w", err)
		}
		ev.Kind = EventPaymentSucceeded
		ev.ProviderTransactionID = inv.PaymentIntent
		ev.ProviderSubscriptionID = inv.Subscription

	case "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return nil, fmt.Errorf("malformed stripe invoice: %w", err)
		}
		ev.Kind = EventPaymentFailed
		ev.ProviderTransactionID = inv.PaymentIntent
		ev.ProviderSubscriptionID = inv.Subscription

	case "customer.subscription.created":
		if err := parseStripeSubscription(env.Data.Object, ev); err != nil {
			return nil, err
		}
		ev.Kind = EventSubscriptionCreated

	case "customer.subscription.updated":
		if err := parseStripeSubscription(env.Data.Object, ev); err != nil {
			return nil, err
		}
		ev.Kind = EventSubscriptionUpdated

	case "customer.subscription.deleted":
		if err := parseStripeSubscription(env.Data.Object, ev); err != nil {
			return nil, err
		}
		ev.Kind = EventSubscriptionCancelled
		ev.SubscriptionStatus = types.SubscriptionStatusCancelled
	}

	return ev, nil
}

func parseStripeSubscription(raw json.RawMessage, ev *Event) error {
	var sub stripeSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("malformed stripe subscription: %w", err)
	}
	ev.ProviderSubscriptionID = sub.ID
	ev.SubscriptionStatus = stripeSubscriptionStatus(sub.Status)
	ev.RenewalDisabled = sub.CancelAtPeriodEnd
	if sub.CurrentPeriodEnd > 0 {
		ev.PeriodEnd = lo.ToPtr(time.Unix(sub.CurrentPeriodEnd, 0))
	}
	return nil
}

func stripeSubscriptionStatus(s string) types.SubscriptionStatus {
	switch s {
	case "trialing":
		return types.SubscriptionStatusTrialing
	case "active":
		return types.SubscriptionStatusActive
	case "past_due", "unpaid":
		return types.SubscriptionStatusPastDue
	case "canceled":
		return types.SubscriptionStatusCancelled
	case "incomplete_expired":
		return types.SubscriptionStatusExpired
	default:
		return types.SubscriptionStatusActive
	}
}
