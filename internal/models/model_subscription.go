package models

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"
)

// Subscription is a recurring entitlement to a plan. Rows are never
// hard-deleted; terminal rows (cancelled, expired) stay for audit.
//
// At most one row per user may be in an effective status (active, trialing);
// the subscription service enforces this at write time.
type Subscription struct {
	ID     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	PlanID string                   `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	// ProviderSubscriptionID keys webhook lookups; provider events carry no
	// internal id.
	ProviderSubscriptionID *string `gorm:"column:provider_subscription_id;type:varchar(128);index" json:"provider_subscription_id"`
	Provider               types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null" json:"provider"`

	CurrentPeriodStart time.Time  `gorm:"column:current_period_start;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `gorm:"column:current_period_end;not null;index" json:"current_period_end"`
	CancelAtPeriodEnd  bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	CancelReason       *string    `gorm:"column:cancel_reason;type:varchar(255)" json:"cancel_reason"`
	TrialEndsAt        *time.Time `gorm:"column:trial_ends_at;default:null" json:"trial_ends_at"`
	AutoRenew          bool       `gorm:"column:auto_renew;not null;default:true" json:"auto_renew"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "user_subscriptions"
}

// EffectiveAt reports whether the subscription entitles access at the given
// time: status in {active, trialing} with the period end still in the future.
func (s *Subscription) EffectiveAt(at time.Time) bool {
	return s != nil && s.Status.Effective() && s.CurrentPeriodEnd.After(at)
}
