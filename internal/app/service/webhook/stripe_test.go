package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/pkg/types"
)

func TestParseStripe_PaymentIntentSucceeded(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "status": "succeeded"}}
	}`)

	ev, err := ParseStripe(body)
	require.NoError(t, err)
	require.Equal(t, types.PaymentProviderStripe, ev.Provider)
	require.Equal(t, "evt_1", ev.ProviderEventID)
	require.Equal(t, EventPaymentSucceeded, ev.Kind)
	require.Equal(t, "pi_123", ev.ProviderTransactionID)
}

func TestParseStripe_PaymentFailedCarriesReason(t *testing.T) {
	body := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_9", "last_payment_error": {"code": "card_declined", "message": "Your card was declined."}}}
	}`)

	ev, err := ParseStripe(body)
	require.NoError(t, err)
	require.Equal(t, EventPaymentFailed, ev.Kind)
	require.Equal(t, "pi_9", ev.ProviderTransactionID)
	require.Equal(t, "Your card was declined.", ev.FailureReason)
}

func TestParseStripe_ChargeRefundedUsesPaymentIntent(t *testing.T) {
	body := []byte(`{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "payment_intent": "pi_123"}}
	}`)

	ev, err := ParseStripe(body)
	require.NoError(t, err)
	require.Equal(t, EventRefundApplied, ev.Kind)
	require.Equal(t, "pi_123", ev.ProviderTransactionID)
}

func TestParseStripe_InvoicePaymentSucceededCarriesSubscription(t *testing.T) {
	body := []byte(`{
		"id": "evt_4",
		"type": "invoice.payment_succeeded",
		"data": {"object": {"id": "in_1", "subscription": "sub_42", "payment_intent": "pi_55"}}
	}`)

	ev, err := ParseStripe(body)
	require.NoError(t, err)
	require.Equal(t, EventPaymentSucceeded, ev.Kind)
	require.Equal(t, "pi_55", ev.ProviderTransactionID)
	require.Equal(t, "sub_42", ev.ProviderSubscriptionID)
}

func TestParseStripe_SubscriptionLifecycle(t *testing.T) {
	periodEnd := int64(1790000000)
	cases := []struct {
		eventType string
		status    string
		kind      EventKind
		mapped    types.SubscriptionStatus
	}{
		{"customer.subscription.created", "trialing", EventSubscriptionCreated, types.SubscriptionStatusTrialing},
		{"customer.subscription.updated", "active", EventSubscriptionUpdated, types.SubscriptionStatusActive},
		{"customer.subscription.updated", "past_due", EventSubscriptionUpdated, types.SubscriptionStatusPastDue},
		{"customer.subscription.updated", "unpaid", EventSubscriptionUpdated, types.SubscriptionStatusPastDue},
		{"customer.subscription.deleted", "canceled", EventSubscriptionCancelled, types.SubscriptionStatusCancelled},
	}
	for _, tc := range cases {
		body := []byte(`{
			"id": "evt_5",
			"type": "` + tc.eventType + `",
			"data": {"object": {"id": "sub_42", "status": "` + tc.status + `", "current_period_end": 1790000000}}
		}`)
		ev, err := ParseStripe(body)
		require.NoError(t, err)
		require.Equal(t, tc.kind, ev.Kind, tc.eventType)
		require.Equal(t, tc.mapped, ev.SubscriptionStatus, "%s/%s", tc.eventType, tc.status)
		require.Equal(t, "sub_42", ev.ProviderSubscriptionID)
		require.NotNil(t, ev.PeriodEnd)
		require.Equal(t, time.Unix(periodEnd, 0), *ev.PeriodEnd)
	}
}

func TestParseStripe_CancelAtPeriodEndSetsRenewalDisabled(t *testing.T) {
	body := []byte(`{
		"id": "evt_6",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_42", "status": "active", "cancel_at_period_end": true}}
	}`)

	ev, err := ParseStripe(body)
	require.NoError(t, err)
	require.True(t, ev.RenewalDisabled)
}

func TestParseStripe_UnknownEventKind(t *testing.T) {
	body := []byte(`{"id": "evt_7", "type": "customer.created", "data": {"object": {}}}`)

	ev, err := ParseStripe(body)
	require.NoError(t, err)
	require.Equal(t, EventUnknown, ev.Kind)
	require.Equal(t, "customer.created", ev.RawType)
}

func TestParseStripe_Malformed(t *testing.T) {
	_, err := ParseStripe([]byte(`not json`))
	require.Error(t, err)

	_, err = ParseStripe([]byte(`{"type": "payment_intent.succeeded"}`))
	require.Error(t, err, "missing event id")
}
