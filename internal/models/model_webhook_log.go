package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookLogStatus string

const (
	WebhookLogStatusReceived  WebhookLogStatus = "received"
	WebhookLogStatusProcessed WebhookLogStatus = "processed"
	WebhookLogStatusFailed    WebhookLogStatus = "failed"
)

// WebhookLog is the append-only audit trail of inbound provider events. A row
// is written before any business processing; only the status (plus error and
// processed_at) transitions afterwards.
//
// The unique (provider, provider_event_id) index makes redelivered events
// no-ops: an insert conflict means the event was already accepted.
type WebhookLog struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider string `gorm:"column:provider;type:varchar(32);not null;uniqueIndex:unique_webhook_provider_event,priority:1" json:"provider"`
	// ProviderEventID is the provider's own event identifier, the dedup key.
	ProviderEventID string         `gorm:"column:provider_event_id;type:varchar(128);not null;uniqueIndex:unique_webhook_provider_event,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	TraceID         string         `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Payload         datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Status          WebhookLogStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Error           *string          `gorm:"column:error;type:text" json:"error"`
	ProcessedAt     *time.Time       `gorm:"column:processed_at;default:null" json:"processed_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (WebhookLog) TableName() string {
	return "premium_webhook_logs"
}
