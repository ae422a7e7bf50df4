package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"realtime-collab-be/internal/collab/lock"
	"realtime-collab-be/internal/collab/transform"
	"realtime-collab-be/internal/model"
)

// SnapshotStore is the persistence collaborator. The coordinator loads one
// snapshot while initializing and flushes the final state while draining.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, documentId uuid.UUID) (*model.Document, error)
	SaveSnapshot(ctx context.Context, doc *model.Document) error
}

// Broadcaster fans a serialized envelope out to every connected participant
// of a document. Implemented by the websocket hub.
type Broadcaster interface {
	BroadcastToDocument(documentId uuid.UUID, payload []byte)
}

// Notifier delivers out-of-band alerts (lock preemption, conflicts awaiting
// manual resolution) to the notification provider.
type Notifier interface {
	Notify(eventType string, payload map[string]interface{})
}

// EventPublisher feeds the in-process event bus that the analytics consumer
// hangs off. Publishing must never block the operation pipeline for long.
type EventPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Config tunes one session. Zero values fall back to defaults.
type Config struct {
	// QueueDepth bounds the mailbox; submissions beyond it fail fast.
	QueueDepth int
	// Strategy selects the conflict resolution strategy for the session.
	Strategy model.ResolutionStrategy
	// TieBreak orders concurrent inserts at equal positions.
	TieBreak transform.TieBreak
	// ManualResolutionTimeout bounds how long a conflict may await a human
	// before falling back to last-write-wins.
	ManualResolutionTimeout time.Duration
	// InactivityTimeout expires participants with no activity.
	InactivityTimeout time.Duration
	// Lock configures the lock manager (sweep interval, duration bounds).
	Lock lock.Config
}

func (c *Config) defaults() {
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
	if c.Strategy == "" {
		c.Strategy = model.StrategyOperationalTransform
	}
	if c.ManualResolutionTimeout <= 0 {
		c.ManualResolutionTimeout = 30 * time.Second
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = 5 * time.Minute
	}
}
