package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSnapshot is the persisted form of a document between editing
// sessions. Blocks are stored as a JSON column; the operation log is not
// persisted, only the materialized state.
type DocumentSnapshot struct {
	DocumentId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version    int64
	Blocks     string `gorm:"type:jsonb"`
	Checksum   string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}
