package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification stores session notices surfaced outside the live protocol,
// e.g. a lock expiring while its holder was disconnected.
type Notification struct {
	Id         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentId uuid.UUID  `gorm:"type:uuid;index:idx_notifications_doc_created,priority:1" json:"document_id"`
	UserId     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"` // nil targets every participant
	TypeCode   string     `gorm:"type:varchar(50);not null;index" json:"type_code"`
	Message    string     `gorm:"type:text;not null" json:"message"`
	Metadata   string     `gorm:"type:jsonb" json:"metadata,omitempty"`
	IsRead     bool       `gorm:"default:false" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_notifications_doc_created,priority:2" json:"created_at"`
}
