package models

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"

	"gorm.io/datatypes"
)

// PremiumContent maps a content item to its access rule. Maintained by
// administrators, read-only to the billing core. Content without a row is not
// gated.
type PremiumContent struct {
	ID          string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ContentType string           `gorm:"column:content_type;type:varchar(64);not null;uniqueIndex:unique_premium_content_ref,priority:1" json:"content_type"`
	ContentID   string           `gorm:"column:content_id;type:varchar(64);not null;uniqueIndex:unique_premium_content_ref,priority:2" json:"content_id"`
	AccessType  types.AccessType `gorm:"column:access_type;type:varchar(32);not null" json:"access_type"`
	// Price applies to one_time rules, in minor currency units.
	Price    int64  `gorm:"column:price;type:bigint;not null;default:0" json:"price"`
	Currency string `gorm:"column:currency;type:varchar(8)" json:"currency"`
	// RequiredPlanIDs restricts plan_required rules; empty means any effective
	// subscription qualifies.
	RequiredPlanIDs datatypes.JSONSlice[string] `gorm:"column:required_plan_ids;type:jsonb;default:'[]'" json:"required_plan_ids"`
	PreviewPolicy   string                      `gorm:"column:preview_policy;type:varchar(32)" json:"preview_policy"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (PremiumContent) TableName() string {
	return "premium_content"
}

func (c *PremiumContent) RequiresPlan(planID string) bool {
	if c == nil || len(c.RequiredPlanIDs) == 0 {
		return false
	}
	for _, id := range c.RequiredPlanIDs {
		if id == planID {
			return true
		}
	}
	return false
}
