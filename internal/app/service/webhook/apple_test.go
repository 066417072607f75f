package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/pkg/types"
)

func appleNotification(notificationType string) *apple.Notification {
	return &apple.Notification{
		Payload: &apple.NotificationPayload{
			NotificationType: notificationType,
			NotificationUUID: "uuid-1",
		},
		TransactionInfo: &apple.TransactionInfo{
			TransactionID:         "tx-2",
			OriginalTransactionID: "tx-1",
			ExpiresDate:           1790000000000,
		},
	}
}

func TestMapAppleNotification_DidRenew(t *testing.T) {
	ev := MapAppleNotification(appleNotification("DID_RENEW"), []byte(`{}`))

	require.Equal(t, types.PaymentProviderApple, ev.Provider)
	require.Equal(t, "uuid-1", ev.ProviderEventID)
	require.Equal(t, EventPaymentSucceeded, ev.Kind)
	require.Equal(t, "tx-2", ev.ProviderTransactionID)
	require.Equal(t, "tx-1", ev.ProviderSubscriptionID, "subscriptions are keyed by the original transaction id")
	require.NotNil(t, ev.PeriodEnd)
	require.Equal(t, time.UnixMilli(1790000000000), *ev.PeriodEnd)
}

func TestMapAppleNotification_Lifecycle(t *testing.T) {
	cases := []struct {
		notificationType string
		kind             EventKind
		status           types.SubscriptionStatus
	}{
		{"SUBSCRIBED", EventSubscriptionCreated, types.SubscriptionStatusActive},
		{"DID_FAIL_TO_RENEW", EventSubscriptionUpdated, types.SubscriptionStatusPastDue},
		{"EXPIRED", EventSubscriptionCancelled, types.SubscriptionStatusExpired},
	}
	for _, tc := range cases {
		ev := MapAppleNotification(appleNotification(tc.notificationType), nil)
		require.Equal(t, tc.kind, ev.Kind, tc.notificationType)
		require.Equal(t, tc.status, ev.SubscriptionStatus, tc.notificationType)
	}
}

func TestMapAppleNotification_RenewalStatusChange(t *testing.T) {
	n := appleNotification("DID_CHANGE_RENEWAL_STATUS")
	n.RenewalInfo = &apple.RenewalInfo{AutoRenewStatus: 0}

	ev := MapAppleNotification(n, nil)
	require.Equal(t, EventSubscriptionUpdated, ev.Kind)
	require.True(t, ev.RenewalDisabled)

	n.RenewalInfo.AutoRenewStatus = 1
	ev = MapAppleNotification(n, nil)
	require.False(t, ev.RenewalDisabled)
}

func TestMapAppleNotification_Refund(t *testing.T) {
	n := appleNotification("REFUND")
	n.TransactionInfo.RevocationDate = 1790000500000

	ev := MapAppleNotification(n, nil)
	require.Equal(t, EventRefundApplied, ev.Kind)
	require.Equal(t, time.UnixMilli(1790000500000), *ev.PeriodEnd)
}

func TestMapAppleNotification_TestNotification(t *testing.T) {
	n := &apple.Notification{
		Payload:            &apple.NotificationPayload{NotificationType: "TEST", NotificationUUID: "uuid-t"},
		IsTestNotification: true,
	}

	ev := MapAppleNotification(n, nil)
	require.Equal(t, EventUnknown, ev.Kind)
	require.Equal(t, "uuid-t", ev.ProviderEventID)
	require.Empty(t, ev.ProviderTransactionID)
}
