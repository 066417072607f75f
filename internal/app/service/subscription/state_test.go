package subscription

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/pkg/types"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to types.SubscriptionStatus
		allowed  bool
	}{
		{types.SubscriptionStatusTrialing, types.SubscriptionStatusActive, true},
		{types.SubscriptionStatusTrialing, types.SubscriptionStatusPastDue, true},
		{types.SubscriptionStatusTrialing, types.SubscriptionStatusCancelled, true},
		{types.SubscriptionStatusTrialing, types.SubscriptionStatusExpired, true},
		{types.SubscriptionStatusActive, types.SubscriptionStatusPastDue, true},
		{types.SubscriptionStatusActive, types.SubscriptionStatusCancelled, true},
		{types.SubscriptionStatusActive, types.SubscriptionStatusExpired, true},
		{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing, false},
		{types.SubscriptionStatusPastDue, types.SubscriptionStatusActive, true},
		{types.SubscriptionStatusPastDue, types.SubscriptionStatusCancelled, true},
		{types.SubscriptionStatusPastDue, types.SubscriptionStatusExpired, true},
		{types.SubscriptionStatusPastDue, types.SubscriptionStatusTrialing, false},
		{types.SubscriptionStatusCancelled, types.SubscriptionStatusActive, false},
		{types.SubscriptionStatusCancelled, types.SubscriptionStatusExpired, false},
		{types.SubscriptionStatusExpired, types.SubscriptionStatusActive, false},
		{types.SubscriptionStatusExpired, types.SubscriptionStatusCancelled, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransition_ReplayIsAllowed(t *testing.T) {
	for _, s := range []types.SubscriptionStatus{
		types.SubscriptionStatusTrialing,
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPastDue,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusExpired,
	} {
		require.True(t, CanTransition(s, s), "replaying %s onto itself must be a no-op, not an error", s)
	}
}
