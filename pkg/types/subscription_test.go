package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBillingPeriodAdvance(t *testing.T) {
	from := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	require.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), BillingPeriodMonthly.Advance(from),
		"Jan 31 + 1 month normalizes past the short month")
	require.Equal(t, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC), BillingPeriodYearly.Advance(from))
	require.Equal(t, from.AddDate(100, 0, 0), BillingPeriodLifetime.Advance(from))
}

func TestSubscriptionStatusEffective(t *testing.T) {
	cases := []struct {
		status    SubscriptionStatus
		effective bool
	}{
		{SubscriptionStatusTrialing, true},
		{SubscriptionStatusActive, true},
		{SubscriptionStatusPastDue, false},
		{SubscriptionStatusCancelled, false},
		{SubscriptionStatusExpired, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.effective, tc.status.Effective(), "status %s", tc.status)
	}
}

func TestSubscriptionStatusTerminal(t *testing.T) {
	require.True(t, SubscriptionStatusCancelled.Terminal())
	require.True(t, SubscriptionStatusExpired.Terminal())
	require.False(t, SubscriptionStatusActive.Terminal())
	require.False(t, SubscriptionStatusTrialing.Terminal())
	require.False(t, SubscriptionStatusPastDue.Terminal())
}

func TestContentRefValid(t *testing.T) {
	require.True(t, ContentRef{Type: "article", ID: "a1"}.Valid())
	require.False(t, ContentRef{Type: "", ID: "a1"}.Valid())
	require.False(t, ContentRef{Type: "article", ID: ""}.Valid())
}
