package entity

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID `gorm:"type:uuid;index"`
	BlockId    uuid.UUID `gorm:"type:uuid;index"`
	AuthorId   uuid.UUID `gorm:"type:uuid;index"`
	Content    string
	Resolved   bool
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
