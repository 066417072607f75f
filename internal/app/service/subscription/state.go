package subscription

import "github.com/fatflowers/paywall/pkg/types"

// transitions is the closed set of legal lifecycle moves. Terminal statuses
// (cancelled, expired) have no outgoing edges.
var transitions = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubscriptionStatusTrialing: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPastDue,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusExpired,
	},
	types.SubscriptionStatusActive: {
		types.SubscriptionStatusPastDue,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusExpired,
	},
	types.SubscriptionStatusPastDue: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusExpired,
	},
}

// CanTransition reports whether the state machine allows from → to.
// A no-op move (from == to) is always allowed for idempotent replay.
func CanTransition(from, to types.SubscriptionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
