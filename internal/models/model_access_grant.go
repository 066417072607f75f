package models

import "time"

// AccessGrant is a one-time unlock of a content item for a user. A second
// grant for the same (user, content) key overwrites the first.
type AccessGrant struct {
	ID          string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID      string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:unique_access_grant_key,priority:1" json:"user_id"`
	ContentType string `gorm:"column:content_type;type:varchar(64);not null;uniqueIndex:unique_access_grant_key,priority:2" json:"content_type"`
	ContentID   string `gorm:"column:content_id;type:varchar(64);not null;uniqueIndex:unique_access_grant_key,priority:3" json:"content_id"`
	// Method records how the grant was obtained (purchase, gift, ...).
	Method string `gorm:"column:method;type:varchar(32);not null" json:"method"`
	// TransactionID is the originating ledger row; refunding it revokes the
	// grant.
	TransactionID *string    `gorm:"column:transaction_id;type:uuid;index" json:"transaction_id"`
	ExpiresAt     *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (AccessGrant) TableName() string {
	return "user_premium_access"
}

// ValidAt reports whether the grant is in force at the given time.
func (g *AccessGrant) ValidAt(at time.Time) bool {
	return g != nil && (g.ExpiresAt == nil || g.ExpiresAt.After(at))
}
