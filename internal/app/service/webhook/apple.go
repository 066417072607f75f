package webhook

import (
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/pkg/types"
)

// MapAppleNotification reduces a verified App Store notification to the
// neutral Event form. App Store subscriptions are keyed by the original
// transaction id.
func MapAppleNotification(n *apple.Notification, body []byte) *Event {
	ev := &Event{
		Provider:        types.PaymentProviderApple,
		ProviderEventID: n.Payload.NotificationUUID,
		RawType:         n.Payload.NotificationType,
		Kind:            EventUnknown,
		Payload:         body,
	}
	if n.IsTestNotification {
		return ev
	}

	tx := n.TransactionInfo
	ev.ProviderTransactionID = tx.TransactionID
	ev.ProviderSubscriptionID = tx.OriginalTransactionID
	if tx.ExpiresDate > 0 {
		ev.PeriodEnd = lo.ToPtr(time.UnixMilli(tx.ExpiresDate))
	}

	switch n.Payload.NotificationType {
	case "SUBSCRIBED":
		ev.Kind = EventSubscriptionCreated
		ev.SubscriptionStatus = types.SubscriptionStatusActive

	case "DID_RENEW":
		ev.Kind = EventPaymentSucceeded

	case "DID_FAIL_TO_RENEW":
		// GRACE_PERIOD subtype keeps entitlement on Apple's side; locally the
		// grace window in the renewal sweep covers it.
		ev.Kind = EventSubscriptionUpdated
		ev.SubscriptionStatus = types.SubscriptionStatusPastDue

	case "DID_CHANGE_RENEWAL_STATUS":
		ev.Kind = EventSubscriptionUpdated
		ev.SubscriptionStatus = types.SubscriptionStatusActive
		if n.RenewalInfo != nil && n.RenewalInfo.AutoRenewStatus == 0 {
			ev.RenewalDisabled = true
		}

	case "EXPIRED":
		ev.Kind = EventSubscriptionCancelled
		ev.SubscriptionStatus = types.SubscriptionStatusExpired

	case "REFUND":
		ev.Kind = EventRefundApplied
		if tx.RevocationDate > 0 {
			ev.PeriodEnd = lo.ToPtr(time.UnixMilli(tx.RevocationDate))
		}
	}

	return ev
}
