package models

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"

	"gorm.io/datatypes"
)

// Transaction is the ledger row for every monetary operation. Rows are never
// deleted; status moves are guarded by the terminal-state invariant in the
// ledger service.
type Transaction struct {
	ID       string                  `gorm:"column:id;primary_key;type:uuid;index:idx_tx_user_id_id,priority:2,sort:desc" json:"id"`
	UserID   string                  `gorm:"column:user_id;type:varchar(64);not null;index:idx_tx_user_id_id,priority:1" json:"user_id"`
	Type     types.TransactionType   `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Amount   int64                   `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency string                  `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status   types.TransactionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Provider types.PaymentProvider   `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:unique_tx_provider_ref,priority:1" json:"provider"`
	// ProviderTransactionID is nil until the provider has responded.
	ProviderTransactionID *string `gorm:"column:provider_transaction_id;type:varchar(128);uniqueIndex:unique_tx_provider_ref,priority:2" json:"provider_transaction_id"`

	// Exactly one of the content reference and the plan reference is set,
	// depending on Type.
	ContentType *string `gorm:"column:content_type;type:varchar(64)" json:"content_type"`
	ContentID   *string `gorm:"column:content_id;type:varchar(64)" json:"content_id"`
	PlanID      *string `gorm:"column:plan_id;type:varchar(64)" json:"plan_id"`
	// SubscriptionID links subscription charges (initial and renewal) to the
	// subscription row they fund.
	SubscriptionID *string `gorm:"column:subscription_id;type:uuid" json:"subscription_id"`

	CouponCode     string `gorm:"column:coupon_code;type:varchar(64)" json:"coupon_code"`
	DiscountAmount int64  `gorm:"column:discount_amount;type:bigint;not null;default:0" json:"discount_amount"`

	InvoiceID     *string           `gorm:"column:invoice_id;type:uuid" json:"invoice_id"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	FailureReason *string           `gorm:"column:failure_reason;type:varchar(255)" json:"failure_reason"`
	RefundedAt    *time.Time        `gorm:"column:refunded_at;default:null" json:"refunded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "premium_transactions"
}

func (t *Transaction) ContentRef() *types.ContentRef {
	if t == nil || t.ContentType == nil || t.ContentID == nil {
		return nil
	}
	return &types.ContentRef{Type: *t.ContentType, ID: *t.ContentID}
}

// NetAmount is the charge after the coupon discount.
func (t *Transaction) NetAmount() int64 {
	if t == nil {
		return 0
	}
	n := t.Amount - t.DiscountAmount
	if n < 0 {
		return 0
	}
	return n
}
