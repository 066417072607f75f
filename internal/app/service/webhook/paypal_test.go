package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/pkg/types"
)

func TestParsePayPal_CaptureCompletedPrefersOrderID(t *testing.T) {
	body := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-9",
			"supplementary_data": {"related_ids": {"order_id": "ORDER-1"}}
		}
	}`)

	ev, err := ParsePayPal(body)
	require.NoError(t, err)
	require.Equal(t, types.PaymentProviderPayPal, ev.Provider)
	require.Equal(t, "WH-1", ev.ProviderEventID)
	require.Equal(t, EventPaymentSucceeded, ev.Kind)
	require.Equal(t, "ORDER-1", ev.ProviderTransactionID)
}

func TestParsePayPal_CaptureDenied(t *testing.T) {
	body := []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.CAPTURE.DENIED",
		"resource": {"id": "CAP-9", "status_details": {"reason": "DECLINED_BY_RISK_FRAUD_FILTERS"}}
	}`)

	ev, err := ParsePayPal(body)
	require.NoError(t, err)
	require.Equal(t, EventPaymentFailed, ev.Kind)
	require.Equal(t, "CAP-9", ev.ProviderTransactionID)
	require.Equal(t, "DECLINED_BY_RISK_FRAUD_FILTERS", ev.FailureReason)
}

func TestParsePayPal_SubscriptionActivated(t *testing.T) {
	body := []byte(`{
		"id": "WH-3",
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"resource": {
			"id": "I-SUB1",
			"billing_info": {"next_billing_time": "2026-09-30T00:00:00Z"}
		}
	}`)

	ev, err := ParsePayPal(body)
	require.NoError(t, err)
	require.Equal(t, EventSubscriptionCreated, ev.Kind)
	require.Equal(t, "I-SUB1", ev.ProviderSubscriptionID)
	require.Equal(t, types.SubscriptionStatusActive, ev.SubscriptionStatus)
	require.NotNil(t, ev.PeriodEnd)
	require.Equal(t, 2026, ev.PeriodEnd.Year())
}

func TestParsePayPal_SubscriptionStateMapping(t *testing.T) {
	cases := []struct {
		eventType string
		kind      EventKind
		status    types.SubscriptionStatus
	}{
		{"BILLING.SUBSCRIPTION.SUSPENDED", EventSubscriptionUpdated, types.SubscriptionStatusPastDue},
		{"BILLING.SUBSCRIPTION.PAYMENT.FAILED", EventSubscriptionUpdated, types.SubscriptionStatusPastDue},
		{"BILLING.SUBSCRIPTION.CANCELLED", EventSubscriptionCancelled, types.SubscriptionStatusCancelled},
		{"BILLING.SUBSCRIPTION.EXPIRED", EventSubscriptionCancelled, types.SubscriptionStatusExpired},
	}
	for _, tc := range cases {
		body := []byte(`{"id": "WH-4", "event_type": "` + tc.eventType + `", "resource": {"id": "I-SUB1"}}`)
		ev, err := ParsePayPal(body)
		require.NoError(t, err)
		require.Equal(t, tc.kind, ev.Kind, tc.eventType)
		require.Equal(t, tc.status, ev.SubscriptionStatus, tc.eventType)
	}
}

func TestParsePayPal_UnknownAndMalformed(t *testing.T) {
	ev, err := ParsePayPal([]byte(`{"id": "WH-5", "event_type": "CUSTOMER.DISPUTE.CREATED", "resource": {}}`))
	require.NoError(t, err)
	require.Equal(t, EventUnknown, ev.Kind)

	_, err = ParsePayPal([]byte(`{`))
	require.Error(t, err)

	_, err = ParsePayPal([]byte(`{"event_type": "PAYMENT.CAPTURE.COMPLETED"}`))
	require.Error(t, err, "missing event id")
}
