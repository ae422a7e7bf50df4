package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"realtime-collab-be/internal/pkg/logger"
)

// Registry maps document ids to live coordinators. A document has at most
// one coordinator per process; the registry creates it lazily on first join
// and forgets it when the session drains.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Coordinator

	snapshots   SnapshotStore
	broadcaster Broadcaster
	notifier    Notifier
	publisher   EventPublisher
	logger      logger.ILogger
	cfg         Config
}

func NewRegistry(
	snapshots SnapshotStore,
	broadcaster Broadcaster,
	notifier Notifier,
	publisher EventPublisher,
	log logger.ILogger,
	cfg Config,
) *Registry {
	cfg.defaults()
	return &Registry{
		sessions:    make(map[uuid.UUID]*Coordinator),
		snapshots:   snapshots,
		broadcaster: broadcaster,
		notifier:    notifier,
		publisher:   publisher,
		logger:      log,
		cfg:         cfg,
	}
}

// GetOrCreate returns the live coordinator for a document, opening one if
// needed. A coordinator found already draining or closed is replaced; its
// snapshot flush happened before it reported closed, so the new session sees
// the final state.
func (r *Registry) GetOrCreate(ctx context.Context, documentId uuid.UUID) (*Coordinator, error) {
	r.mu.RLock()
	c, ok := r.sessions[documentId]
	r.mu.RUnlock()
	if ok && c.State() == StateActive {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[documentId]; ok && c.State() == StateActive {
		return c, nil
	}
	c, err := NewCoordinator(ctx, documentId, r.snapshots, r.broadcaster, r.notifier, r.publisher, r.logger, r.cfg, r.forget)
	if err != nil {
		return nil, err
	}
	r.sessions[documentId] = c
	return c, nil
}

// Get returns the live coordinator without creating one.
func (r *Registry) Get(documentId uuid.UUID) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[documentId]
	if !ok || c.State() == StateClosed {
		return nil, false
	}
	return c, true
}

// List returns every live coordinator.
func (r *Registry) List() []*Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Coordinator, 0, len(r.sessions))
	for _, c := range r.sessions {
		if c.State() != StateClosed {
			out = append(out, c)
		}
	}
	return out
}

// CloseAll drains every live session, used on server shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	for _, c := range r.List() {
		if err := c.Shutdown(ctx); err != nil {
			r.logger.Error("Session", "Shutdown failed", map[string]interface{}{
				"document_id": c.DocumentId(), "error": err.Error(),
			})
		}
	}
}

func (r *Registry) forget(documentId uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, documentId)
}
