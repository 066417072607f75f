package models

import "time"

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is the immutable billing document for a completed transaction.
// Number is unique and strictly increasing within a year-month
// (PREFIX-YYYYMM####); at most one invoice exists per transaction.
type Invoice struct {
	ID            string        `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Number        string        `gorm:"column:number;type:varchar(32);not null;uniqueIndex" json:"number"`
	UserID        string        `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	TransactionID string        `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex" json:"transaction_id"`
	Amount        int64         `gorm:"column:amount;type:bigint;not null" json:"amount"`
	TaxAmount     int64         `gorm:"column:tax_amount;type:bigint;not null;default:0" json:"tax_amount"`
	Total         int64         `gorm:"column:total;type:bigint;not null" json:"total"`
	Currency      string        `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status        InvoiceStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	IssuedAt      time.Time     `gorm:"column:issued_at;not null" json:"issued_at"`
	DueAt         time.Time     `gorm:"column:due_at;not null" json:"due_at"`
	PaidAt        *time.Time    `gorm:"column:paid_at;default:null" json:"paid_at"`
	// ArtifactPath references the rendered document, when rendering succeeded.
	ArtifactPath *string   `gorm:"column:artifact_path;type:varchar(255)" json:"artifact_path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "premium_invoices"
}
