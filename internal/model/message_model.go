package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client -> server message types.
const (
	MsgJoin            = "join"
	MsgLeave           = "leave"
	MsgSubmitOperation = "submit_operation"
	MsgAcquireLock     = "acquire_lock"
	MsgReleaseLock     = "release_lock"
	MsgUpdatePresence  = "update_presence"
	MsgResolveConflict = "resolve_conflict"
)

// Server -> client message types.
const (
	MsgJoinAck            = "join_ack"
	MsgAck                = "ack"
	MsgOperationCommitted = "operation_committed"
	MsgOperationRejected  = "operation_rejected"
	MsgLockGranted        = "lock_granted"
	MsgLockDenied         = "lock_denied"
	MsgLockExpired        = "lock_expired"
	MsgLockPreempted      = "lock_preempted"
	MsgPresenceChanged    = "presence_changed"
	MsgParticipantJoined  = "participant_joined"
	MsgParticipantLeft    = "participant_left"
	MsgConflictDetected   = "conflict_detected"
	MsgConflictResolved   = "conflict_resolved"
	MsgError              = "error"
)

// Envelope is the wire frame for the session channel. Payload is decoded
// according to Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

type JoinAck struct {
	Document     *Document      `json:"document"`
	Version      int64          `json:"version"`
	Participants []*Participant `json:"participants"`
}

type OperationCommitted struct {
	Operation  *Operation `json:"operation"`
	NewVersion int64      `json:"new_version"`
}

type OperationRejected struct {
	OperationId uuid.UUID `json:"operation_id"`
	Reason      string    `json:"reason"`
	BlockId     uuid.UUID `json:"block_id,omitempty"`
}

type LockGranted struct {
	Lock *ContentLock `json:"lock"`
}

type LockDenied struct {
	BlockId uuid.UUID `json:"block_id"`
	Reason  string    `json:"reason"`
}

type LockExpired struct {
	LockId  uuid.UUID `json:"lock_id"`
	BlockId uuid.UUID `json:"block_id"`
}

type LockPreempted struct {
	LockId   uuid.UUID `json:"lock_id"`
	BlockId  uuid.UUID `json:"block_id"`
	HolderId uuid.UUID `json:"holder_id"`
	ByUserId uuid.UUID `json:"by_user_id"`
}

type PresenceChanged struct {
	UserId    uuid.UUID  `json:"user_id"`
	Cursor    *Cursor    `json:"cursor,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
	IsActive  bool       `json:"is_active"`
}

type ParticipantJoined struct {
	Participant *Participant `json:"participant"`
}

type ParticipantLeft struct {
	UserId uuid.UUID `json:"user_id"`
}

type ConflictDetected struct {
	Conflict *ConflictRecord `json:"conflict"`
}

type ConflictResolved struct {
	ConflictId uuid.UUID `json:"conflict_id"`
	Resolution string    `json:"resolution"`
}
