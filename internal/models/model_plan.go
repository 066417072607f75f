package models

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"

	"gorm.io/datatypes"
)

// Plan is a purchasable subscription tier. Plans with subscribers are never
// deleted, only deactivated.
type Plan struct {
	ID            string              `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Name          string              `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Price         int64               `gorm:"column:price;type:bigint;not null" json:"price"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	BillingPeriod types.BillingPeriod `gorm:"column:billing_period;type:varchar(16);not null" json:"billing_period"`
	// AppleProductID maps App Store receipt lines onto this plan.
	AppleProductID string `gorm:"column:apple_product_id;type:varchar(128);index" json:"apple_product_id"`
	TrialDays      int    `gorm:"column:trial_days;not null;default:0" json:"trial_days"`
	FeatureLimits datatypes.JSONMap   `gorm:"column:feature_limits;type:jsonb;default:'{}'" json:"feature_limits"`
	Active        bool                `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (Plan) TableName() string {
	return "premium_plans"
}
