package session

import (
	"errors"

	"realtime-collab-be/internal/collab/document"
	"realtime-collab-be/internal/collab/lock"
	"realtime-collab-be/internal/collab/transform"
)

var (
	// ErrClosed rejects anything submitted to a terminal session.
	ErrClosed = errors.New("session closed")

	// ErrOverloaded fails fast when the session mailbox is at its
	// configured depth instead of queuing unboundedly.
	ErrOverloaded = errors.New("session overloaded")

	// ErrPermissionDenied rejects operations the author's permissions do
	// not cover, and calls from non-participants.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrLockHeld rejects an operation against a block locked non-breakably
	// by a different author. Never auto-resolved.
	ErrLockHeld = errors.New("block locked by another participant")

	// ErrResolutionPending means the operation is parked behind a manual
	// conflict resolution; the outcome arrives by broadcast.
	ErrResolutionPending = errors.New("operation pending manual conflict resolution")

	// ErrDiscarded means a resolution strategy dropped the operation.
	ErrDiscarded = errors.New("operation discarded by conflict resolution")
)

// Reason maps an error to the machine-readable code carried in
// OperationRejected / LockDenied payloads, so the UI collaborator can render
// a retry or manual-resolution prompt.
func Reason(err error) string {
	switch {
	case errors.Is(err, document.ErrVersionBehind):
		return "version_behind"
	case errors.Is(err, document.ErrVersionAhead):
		return "version_ahead"
	case errors.Is(err, document.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, document.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, transform.ErrUnresolvable):
		return "structure_change"
	case errors.Is(err, lock.ErrAlreadyHeld):
		return "lock_already_held"
	case errors.Is(err, lock.ErrExpired):
		return "lock_expired"
	case errors.Is(err, lock.ErrNotFound):
		return "lock_not_found"
	case errors.Is(err, ErrClosed):
		return "session_closed"
	case errors.Is(err, ErrOverloaded):
		return "overloaded"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrLockHeld):
		return "lock_held"
	case errors.Is(err, ErrResolutionPending):
		return "resolution_pending"
	case errors.Is(err, ErrDiscarded):
		return "conflict_discarded"
	default:
		return "internal_error"
	}
}
