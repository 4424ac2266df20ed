package postgres

import (
	"time"

	"github.com/lib/pq"
)

// SessionRecord is one streaming session as stored in the journal table.
type SessionRecord struct {
	ID uint `gorm:"primaryKey"`

	SessionID string `gorm:"type:char(26);not null;uniqueIndex:idx_session_record_session_id"`
	Remote    string `gorm:"type:text;not null"`

	OpenedAt time.Time  `gorm:"not null;index:idx_session_record_opened_at"`
	ClosedAt *time.Time `gorm:"index:idx_session_record_closed_at"`

	Subscriptions pq.StringArray `gorm:"type:text[]"`
	Received      int64          `gorm:"not null;default:0"`
	Sent          int64          `gorm:"not null;default:0"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (SessionRecord) TableName() string {
	return "session_record"
}
