package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByDocumentId filters rows belonging to one document.
type ByDocumentId struct {
	DocumentId uuid.UUID
}

func (s ByDocumentId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentId)
}

// ByBlockId filters rows anchored to one block.
type ByBlockId struct {
	BlockId uuid.UUID
}

func (s ByBlockId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("block_id = ?", s.BlockId)
}

// ByAuthorId filters rows created by one author.
type ByAuthorId struct {
	AuthorId uuid.UUID
}

func (s ByAuthorId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("author_id = ?", s.AuthorId)
}

// UnresolvedOnly keeps open comments.
type UnresolvedOnly struct{}

func (s UnresolvedOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("resolved = ?", false)
}
