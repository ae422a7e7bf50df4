package dto

import (
	"time"

	"realtime-collab-be/internal/model"

	"github.com/google/uuid"
)

// Websocket client payloads. The envelope type selects which of these the
// payload decodes into.

type JoinRequest struct {
	Permissions []model.Permission `json:"permissions" validate:"required,min=1"`
}

type SubmitOperationRequest struct {
	Operation *model.Operation `json:"operation" validate:"required"`
}

type AcquireLockRequest struct {
	BlockId    uuid.UUID      `json:"block_id" validate:"required"`
	Kind       model.LockKind `json:"kind" validate:"required,oneof=edit move delete"`
	DurationMs int64          `json:"duration_ms"`
	Priority   int            `json:"priority"`
	Breakable  bool           `json:"breakable"`
}

type ReleaseLockRequest struct {
	LockId uuid.UUID `json:"lock_id" validate:"required"`
}

type UpdatePresenceRequest struct {
	Cursor    *model.Cursor    `json:"cursor"`
	Selection *model.Selection `json:"selection"`
}

type ResolveConflictRequest struct {
	ConflictId uuid.UUID `json:"conflict_id" validate:"required"`
	Accept     bool      `json:"accept"`
}

// REST responses.

type SessionSummary struct {
	SessionId    uuid.UUID `json:"session_id"`
	DocumentId   uuid.UUID `json:"document_id"`
	State        string    `json:"state"`
	Version      int64     `json:"version"`
	Participants int       `json:"participants"`
}

type SnapshotResponse struct {
	Document *model.Document `json:"document"`
}

type ConflictListResponse struct {
	Conflicts []*model.ConflictRecord `json:"conflicts"`
}

type NotificationListResponse struct {
	Notifications interface{} `json:"notifications"`
	Total         int64       `json:"total"`
	Unread        int64       `json:"unread"`
}

type ResolveConflictRestRequest struct {
	ConflictId uuid.UUID `json:"conflict_id" validate:"required"`
	UserId     uuid.UUID `json:"user_id" validate:"required"`
	Accept     bool      `json:"accept"`
}

type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	At       time.Time        `json:"at"`
}
