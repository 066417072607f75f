package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Effective reports whether the status counts as an active entitlement.
// past_due does not: access is suspended on the first missed renewal.
func (s SubscriptionStatus) Effective() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Terminal statuses admit no further lifecycle transitions.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

type BillingPeriod string

const (
	BillingPeriodMonthly  BillingPeriod = "monthly"
	BillingPeriodYearly   BillingPeriod = "yearly"
	BillingPeriodLifetime BillingPeriod = "lifetime"
)

// lifetimeYears is the practical "never expires" sentinel for lifetime plans.
const lifetimeYears = 100

// Advance returns the period end for a period starting at from.
func (p BillingPeriod) Advance(from time.Time) time.Time {
	switch p {
	case BillingPeriodMonthly:
		return from.AddDate(0, 1, 0)
	case BillingPeriodYearly:
		return from.AddDate(1, 0, 0)
	case BillingPeriodLifetime:
		return from.AddDate(lifetimeYears, 0, 0)
	}
	return from
}

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCheckout   SubscriptionChangeReason = "checkout"
	SubscriptionChangeReasonRenewal    SubscriptionChangeReason = "renewal"
	SubscriptionChangeReasonPastDue    SubscriptionChangeReason = "past_due"
	SubscriptionChangeReasonCancel     SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonExpire     SubscriptionChangeReason = "expire"
	SubscriptionChangeReasonPlanChange SubscriptionChangeReason = "plan_change"
	SubscriptionChangeReasonWebhook    SubscriptionChangeReason = "webhook"
	SubscriptionChangeReasonGift       SubscriptionChangeReason = "gift"
)
