package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/paywall/pkg/types"
)

type paypalEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		StatusDetails     *struct {
			Reason string `json:"reason"`
		} `json:"status_details"`
		SupplementaryData *struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		BillingInfo *struct {
			NextBillingTime time.Time `json:"next_billing_time"`
		} `json:"billing_info"`
	} `json:"resource"`
}

// ParsePayPal reduces a verified PayPal event body to the neutral Event form.
// Orders are referenced by order id: captures carry it in supplementary_data.
func ParsePayPal(body []byte) (*Event, error) {
	var env paypalEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed paypal event: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("paypal event missing id")
	}

	ev := &Event{
		Provider:        types.PaymentProviderPayPal,
		ProviderEventID: env.ID,
		RawType:         env.EventType,
		Kind:            EventUnknown,
		Payload:         body,
	}

	orderID := env.Resource.ID
	if env.Resource.SupplementaryData != nil && env.Resource.SupplementaryData.RelatedIDs.OrderID != "" {
		orderID = env.Resource.SupplementaryData.RelatedIDs.OrderID
	}

	switch env.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		ev.Kind = EventPaymentSucceeded
		ev.ProviderTransactionID = orderID

	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		ev.Kind = EventPaymentFailed
		ev.ProviderTransactionID = orderID
		if env.Resource.StatusDetails != nil {
			ev.FailureReason = env.Resource.StatusDetails.Reason
		}

	case "PAYMENT.CAPTURE.REFUNDED":
		ev.Kind = EventRefundApplied
		ev.ProviderTransactionID = orderID

	case "BILLING.SUBSCRIPTION.ACTIVATED":
		ev.Kind = EventSubscriptionCreated
		ev.ProviderSubscriptionID = env.Resource.ID
		ev.SubscriptionStatus = types.SubscriptionStatusActive
		if env.Resource.BillingInfo != nil && !env.Resource.BillingInfo.NextBillingTime.IsZero() {
			ev.PeriodEnd = lo.ToPtr(env.Resource.BillingInfo.NextBillingTime)
		}

	case "BILLING.SUBSCRIPTION.UPDATED", "BILLING.SUBSCRIPTION.RE-ACTIVATED":
		ev.Kind = EventSubscriptionUpdated
		ev.ProviderSubscriptionID = env.Resource.ID
		ev.SubscriptionStatus = types.SubscriptionStatusActive
		if env.Resource.BillingInfo != nil && !env.Resource.BillingInfo.NextBillingTime.IsZero() {
			ev.PeriodEnd = lo.ToPtr(env.Resource.BillingInfo.NextBillingTime)
		}

	case "BILLING.SUBSCRIPTION.SUSPENDED", "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		ev.Kind = EventSubscriptionUpdated
		ev.ProviderSubscriptionID = env.Resource.ID
		ev.SubscriptionStatus = types.SubscriptionStatusPastDue

	case "BILLING.SUBSCRIPTION.CANCELLED":
		ev.Kind = EventSubscriptionCancelled
		ev.ProviderSubscriptionID = env.Resource.ID
		ev.SubscriptionStatus = types.SubscriptionStatusCancelled

	case "BILLING.SUBSCRIPTION.EXPIRED":
		ev.Kind = EventSubscriptionCancelled
		ev.ProviderSubscriptionID = env.Resource.ID
		ev.SubscriptionStatus = types.SubscriptionStatusExpired
	}

	return ev, nil
}
