package model

import (
	"time"

	"github.com/google/uuid"
)

type Permission string

const (
	PermissionRead    Permission = "read"
	PermissionEdit    Permission = "edit"
	PermissionFormat  Permission = "format"
	PermissionComment Permission = "comment"
	PermissionAdmin   Permission = "admin"
)

// Cursor is an ephemeral per-participant position. It is never persisted
// beyond the session.
type Cursor struct {
	BlockId uuid.UUID `json:"block_id"`
	Offset  int       `json:"offset"`
}

type Selection struct {
	Start Cursor `json:"start"`
	End   Cursor `json:"end"`
}

type Participant struct {
	UserId      uuid.UUID    `json:"user_id"`
	SessionId   uuid.UUID    `json:"session_id"`
	Cursor      *Cursor      `json:"cursor,omitempty"`
	Selection   *Selection   `json:"selection,omitempty"`
	IsActive    bool         `json:"is_active"`
	Permissions []Permission `json:"permissions"`
	Color       string       `json:"color"`
	JoinedAt    time.Time    `json:"joined_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
}

func (p *Participant) Has(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm || have == PermissionAdmin {
			return true
		}
	}
	return false
}

func (p *Participant) Clone() *Participant {
	clone := *p
	if p.Cursor != nil {
		c := *p.Cursor
		clone.Cursor = &c
	}
	if p.Selection != nil {
		s := *p.Selection
		clone.Selection = &s
	}
	clone.Permissions = append([]Permission(nil), p.Permissions...)
	return &clone
}
