package access

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/types"
)

func activeSub(planID string, periodEnd time.Time) *models.Subscription {
	return &models.Subscription{
		ID:               "sub-1",
		UserID:           "u1",
		PlanID:           planID,
		Status:           types.SubscriptionStatusActive,
		CurrentPeriodEnd: periodEnd,
	}
}

func TestEvaluate_UngatedContent(t *testing.T) {
	require.True(t, Evaluate(nil, nil, nil, time.Now()))
}

func TestEvaluate_OneTime(t *testing.T) {
	now := time.Now()
	rule := &models.PremiumContent{AccessType: types.AccessTypeOneTime, Price: 500}

	require.False(t, Evaluate(rule, nil, nil, now), "no grant, no access")

	grant := &models.AccessGrant{UserID: "u1"}
	require.True(t, Evaluate(rule, grant, nil, now))

	expired := &models.AccessGrant{UserID: "u1", ExpiresAt: lo.ToPtr(now.Add(-time.Hour))}
	require.False(t, Evaluate(rule, expired, nil, now))

	// an effective subscription does not substitute for the purchase
	subs := []*models.Subscription{activeSub("pro", now.Add(24 * time.Hour))}
	require.False(t, Evaluate(rule, nil, subs, now))
}

func TestEvaluate_SubscriptionGated(t *testing.T) {
	now := time.Now()
	rule := &models.PremiumContent{AccessType: types.AccessTypeSubscription}

	require.False(t, Evaluate(rule, nil, nil, now))

	subs := []*models.Subscription{activeSub("basic", now.Add(time.Hour))}
	require.True(t, Evaluate(rule, nil, subs, now))

	trialing := activeSub("basic", now.Add(time.Hour))
	trialing.Status = types.SubscriptionStatusTrialing
	require.True(t, Evaluate(rule, nil, []*models.Subscription{trialing}, now),
		"trialing counts as effective")

	pastDue := activeSub("basic", now.Add(time.Hour))
	pastDue.Status = types.SubscriptionStatusPastDue
	require.False(t, Evaluate(rule, nil, []*models.Subscription{pastDue}, now),
		"past_due suspends access immediately")

	lapsed := activeSub("basic", now.Add(-time.Minute))
	require.False(t, Evaluate(rule, nil, []*models.Subscription{lapsed}, now),
		"active status with an elapsed period does not grant access")
}

func TestEvaluate_PlanRequired(t *testing.T) {
	now := time.Now()
	rule := &models.PremiumContent{
		AccessType:      types.AccessTypePlanRequired,
		RequiredPlanIDs: []string{"pro", "max"},
	}

	require.True(t, Evaluate(rule, nil, []*models.Subscription{activeSub("pro", now.Add(time.Hour))}, now))
	require.False(t, Evaluate(rule, nil, []*models.Subscription{activeSub("basic", now.Add(time.Hour))}, now))

	// empty plan set falls back to any effective subscription
	open := &models.PremiumContent{AccessType: types.AccessTypePlanRequired}
	require.True(t, Evaluate(open, nil, []*models.Subscription{activeSub("basic", now.Add(time.Hour))}, now))
	require.False(t, Evaluate(open, nil, nil, now))
}
