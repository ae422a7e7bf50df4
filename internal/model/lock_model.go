package model

import (
	"time"

	"github.com/google/uuid"
)

type LockKind string

const (
	LockKindEdit   LockKind = "edit"
	LockKindMove   LockKind = "move"
	LockKindDelete LockKind = "delete"
)

// ContentLock grants its holder exclusive edit rights on one block. At most
// one non-breakable lock may exist per block at any time; a breakable lock
// can be preempted by a request with strictly higher priority.
type ContentLock struct {
	Id         uuid.UUID `json:"id"`
	BlockId    uuid.UUID `json:"block_id"`
	HolderId   uuid.UUID `json:"holder_id"`
	Kind       LockKind  `json:"kind"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Breakable  bool      `json:"breakable"`
	Priority   int       `json:"priority"`
}

func (l *ContentLock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
