package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"realtime-collab-be/internal/model"
)

// SessionAnalytics is a read-only view derived from the operation log.
// It is never authoritative for document state.
type SessionAnalytics struct {
	DocumentId       uuid.UUID                    `json:"document_id"`
	StartedAt        time.Time                    `json:"started_at"`
	TotalOperations  int64                        `json:"total_operations"`
	OpsByType        map[model.OpType]int64       `json:"ops_by_type"`
	OpsByAuthor      map[uuid.UUID]int64          `json:"ops_by_author"`
	RejectedOps      int64                        `json:"rejected_ops"`
	Conflicts        int64                        `json:"conflicts"`
	ConflictsByKind  map[model.ConflictKind]int64 `json:"conflicts_by_kind"`
	LocksGranted     int64                        `json:"locks_granted"`
	LocksExpired     int64                        `json:"locks_expired"`
	Participants     int                          `json:"participants"`
	PeakParticipants int                          `json:"peak_participants"`
}

// Aggregator accumulates per-session metrics. It hangs off the event bus,
// not the operation pipeline, so a slow consumer never stalls commits.
type Aggregator struct {
	mu    sync.Mutex
	stats SessionAnalytics
}

func NewAggregator(documentId uuid.UUID) *Aggregator {
	return &Aggregator{stats: SessionAnalytics{
		DocumentId:      documentId,
		StartedAt:       time.Now(),
		OpsByType:       make(map[model.OpType]int64),
		OpsByAuthor:     make(map[uuid.UUID]int64),
		ConflictsByKind: make(map[model.ConflictKind]int64),
	}}
}

func (a *Aggregator) RecordOperation(op *model.Operation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalOperations++
	a.stats.OpsByType[op.Type]++
	a.stats.OpsByAuthor[op.AuthorId]++
}

func (a *Aggregator) RecordRejection() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.RejectedOps++
}

func (a *Aggregator) RecordConflict(rec *model.ConflictRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Conflicts++
	a.stats.ConflictsByKind[rec.Kind]++
}

func (a *Aggregator) RecordLockGranted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.LocksGranted++
}

func (a *Aggregator) RecordLockExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.LocksExpired++
}

func (a *Aggregator) RecordParticipants(current int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Participants = current
	if current > a.stats.PeakParticipants {
		a.stats.PeakParticipants = current
	}
}

// Snapshot returns a copy of the current metrics.
func (a *Aggregator) Snapshot() SessionAnalytics {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.stats
	out.OpsByType = make(map[model.OpType]int64, len(a.stats.OpsByType))
	for k, v := range a.stats.OpsByType {
		out.OpsByType[k] = v
	}
	out.OpsByAuthor = make(map[uuid.UUID]int64, len(a.stats.OpsByAuthor))
	for k, v := range a.stats.OpsByAuthor {
		out.OpsByAuthor[k] = v
	}
	out.ConflictsByKind = make(map[model.ConflictKind]int64, len(a.stats.ConflictsByKind))
	for k, v := range a.stats.ConflictsByKind {
		out.ConflictsByKind[k] = v
	}
	return out
}
