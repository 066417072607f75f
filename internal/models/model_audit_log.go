package models

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"

	"gorm.io/datatypes"
)

// TransactionAuditLog snapshots a transaction before and after a ledger
// mutation. Written asynchronously; losing one does not affect correctness.
type TransactionAuditLog struct {
	ID            string                               `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID        string                               `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	TransactionID string                               `gorm:"column:transaction_id;type:uuid;not null;index" json:"transaction_id"`
	Reason        string                               `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	Before        datatypes.JSONType[*Transaction]     `gorm:"column:before;type:jsonb" json:"before"`
	After         datatypes.JSONType[*Transaction]     `gorm:"column:after;type:jsonb" json:"after"`
	CreatedAt     time.Time                            `json:"created_at"`
}

func (TransactionAuditLog) TableName() string { return "transaction_audit_log" }

// SubscriptionAuditLog snapshots a subscription around a lifecycle change.
type SubscriptionAuditLog struct {
	ID             string                           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID         string                           `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	SubscriptionID string                           `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	Reason         types.SubscriptionChangeReason   `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	Before         datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb" json:"before"`
	After          datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb" json:"after"`
	CreatedAt      time.Time                        `json:"created_at"`
}

func (SubscriptionAuditLog) TableName() string { return "subscription_audit_log" }
