package oplog

import (
	"github.com/google/uuid"

	"realtime-collab-be/internal/model"
)

// Log is the append-only record of committed operations for one document.
// Sequence numbers equal the document version the operation produced, so the
// op at sequence n moved the document from version n-1 to n. A session
// reopened from a snapshot starts the log at the snapshot's version; history
// before that horizon lives only in the snapshot.
//
// Not safe for concurrent use; the session coordinator serializes access.
type Log struct {
	base    int64
	entries []*model.Operation
	byId    map[uuid.UUID]int64
}

// New returns a log whose first appended operation gets sequence base+1.
// base is the document version the session opened at.
func New(base int64) *Log {
	return &Log{base: base, byId: make(map[uuid.UUID]int64)}
}

// Base returns the version the log starts after. Operations composed against
// an older version cannot be rebased; the ops they missed are gone.
func (l *Log) Base() int64 {
	return l.base
}

// Append records op and returns its sequence number. Re-appending an already
// committed operation id is a no-op returning the original sequence, which
// makes network retries idempotent.
func (l *Log) Append(op *model.Operation) (seq int64, appended bool) {
	if seq, ok := l.byId[op.Id]; ok {
		return seq, false
	}
	l.entries = append(l.entries, op)
	seq = l.base + int64(len(l.entries))
	l.byId[op.Id] = seq
	return seq, true
}

// Get returns the committed operation with the given id.
func (l *Log) Get(id uuid.UUID) (*model.Operation, bool) {
	seq, ok := l.byId[id]
	if !ok {
		return nil, false
	}
	return l.entries[seq-l.base-1], true
}

// Since returns the operations committed after the given version, in commit
// order. The slice is a fresh copy, restartable by calling again; it is how
// a reconnecting participant catches up and how the transform engine finds
// the ops an incoming operation must be rebased across. Versions before the
// base clamp to the base.
func (l *Log) Since(version int64) []*model.Operation {
	if version < l.base {
		version = l.base
	}
	if version >= l.base+int64(len(l.entries)) {
		return nil
	}
	out := make([]*model.Operation, l.base+int64(len(l.entries))-version)
	copy(out, l.entries[version-l.base:])
	return out
}

// All returns every committed operation in order.
func (l *Log) All() []*model.Operation {
	return l.Since(l.base)
}

// Len returns the number of committed operations. base+Len() is the document
// version the log projects to.
func (l *Log) Len() int64 {
	return int64(len(l.entries))
}
