package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateCommentRequest struct {
	DocumentId uuid.UUID `json:"document_id" validate:"required"`
	BlockId    uuid.UUID `json:"block_id" validate:"required"`
	Content    string    `json:"content" validate:"required,max=4000"`
}

type CreateCommentResponse struct {
	Id uuid.UUID `json:"id"`
}

type CommentResponse struct {
	Id         uuid.UUID  `json:"id"`
	DocumentId uuid.UUID  `json:"document_id"`
	BlockId    uuid.UUID  `json:"block_id"`
	AuthorId   uuid.UUID  `json:"author_id"`
	Content    string     `json:"content"`
	Resolved   bool       `json:"resolved"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type UpdateCommentRequest struct {
	Id      uuid.UUID
	Content string `json:"content" validate:"required,max=4000"`
}

type ResolveCommentRequest struct {
	Id uuid.UUID
}
