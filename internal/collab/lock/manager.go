package lock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"realtime-collab-be/internal/model"
)

var (
	// ErrAlreadyHeld means a lock for a different holder blocks the request.
	ErrAlreadyHeld = errors.New("block already locked")

	// ErrExpired means the referenced lock lapsed before the call.
	ErrExpired = errors.New("lock expired")

	// ErrNotFound means no such lock id is known.
	ErrNotFound = errors.New("lock not found")
)

type Config struct {
	// SweepInterval drives the eager expiry sweep (the cache janitor).
	SweepInterval time.Duration
	// MinDuration and MaxDuration bound caller-requested lock lifetimes.
	MinDuration time.Duration
	MaxDuration time.Duration
}

func (c *Config) defaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Second
	}
	if c.MinDuration <= 0 {
		c.MinDuration = time.Second
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 120 * time.Second
	}
}

// Manager arbitrates short-lived exclusive edit locks on blocks. Locks live
// in a TTL cache keyed by block id: expiry is checked lazily on every read
// (the cache hides lapsed entries) and eagerly by the janitor sweep, which
// reports each expired lock through onExpired. Expiry is a lifecycle event,
// not an error.
type Manager struct {
	mu       sync.Mutex
	locks    *cache.Cache
	byId     map[uuid.UUID]uuid.UUID
	released map[uuid.UUID]struct{}

	cfg         Config
	onExpired   func(model.ContentLock)
	onPreempted func(lost model.ContentLock, by uuid.UUID)
}

func NewManager(cfg Config, onExpired func(model.ContentLock), onPreempted func(model.ContentLock, uuid.UUID)) *Manager {
	cfg.defaults()
	m := &Manager{
		locks:       cache.New(cache.NoExpiration, cfg.SweepInterval),
		byId:        make(map[uuid.UUID]uuid.UUID),
		released:    make(map[uuid.UUID]struct{}),
		cfg:         cfg,
		onExpired:   onExpired,
		onPreempted: onPreempted,
	}
	m.locks.OnEvicted(m.evicted)
	return m
}

// Acquire grants a lock on blockId for the requested duration (clamped to
// the configured bounds). A live non-breakable lock held by someone else
// fails with ErrAlreadyHeld; a breakable one is preempted only by a strictly
// higher priority request, with the prior holder notified.
func (m *Manager) Acquire(blockId, holderId uuid.UUID, kind model.LockKind, d time.Duration, priority int, breakable bool) (*model.ContentLock, error) {
	if d < m.cfg.MinDuration {
		d = m.cfg.MinDuration
	}
	if d > m.cfg.MaxDuration {
		d = m.cfg.MaxDuration
	}

	m.mu.Lock()
	var preempted *model.ContentLock
	replacing := false
	if v, found := m.locks.Get(blockId.String()); found {
		cur := v.(*model.ContentLock)
		switch {
		case cur.HolderId == holderId:
			// Re-acquire refreshes the holder's own lock.
			m.released[cur.Id] = struct{}{}
			delete(m.byId, cur.Id)
			replacing = true
		case cur.Breakable && priority > cur.Priority:
			lost := *cur
			preempted = &lost
			m.released[cur.Id] = struct{}{}
			delete(m.byId, cur.Id)
			replacing = true
		default:
			m.mu.Unlock()
			return nil, fmt.Errorf("block %s held by %s until %s: %w",
				blockId, cur.HolderId, cur.ExpiresAt.Format(time.RFC3339), ErrAlreadyHeld)
		}
	}

	now := time.Now()
	lk := &model.ContentLock{
		Id:         uuid.New(),
		BlockId:    blockId,
		HolderId:   holderId,
		Kind:       kind,
		AcquiredAt: now,
		ExpiresAt:  now.Add(d),
		Breakable:  breakable,
		Priority:   priority,
	}
	m.byId[lk.Id] = blockId
	m.mu.Unlock()

	// Set replaces without evicting, which would strand the tombstone in
	// released; Delete routes the old entry through evicted so it gets
	// consumed there.
	if replacing {
		m.locks.Delete(blockId.String())
	}
	m.locks.Set(blockId.String(), lk, d)

	if preempted != nil && m.onPreempted != nil {
		m.onPreempted(*preempted, holderId)
	}
	return lk, nil
}

// Release drops the lock by id. Releasing a lapsed lock returns ErrExpired,
// an unknown id ErrNotFound.
func (m *Manager) Release(lockId uuid.UUID) error {
	m.mu.Lock()
	blockId, ok := m.byId[lockId]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("lock %s: %w", lockId, ErrNotFound)
	}
	v, found := m.locks.Get(blockId.String())
	if !found || v.(*model.ContentLock).Id != lockId {
		delete(m.byId, lockId)
		m.mu.Unlock()
		return fmt.Errorf("lock %s: %w", lockId, ErrExpired)
	}
	m.released[lockId] = struct{}{}
	delete(m.byId, lockId)
	m.mu.Unlock()

	m.locks.Delete(blockId.String())
	return nil
}

// ReleaseHeldBy drops every live lock held by userId, e.g. on disconnect.
func (m *Manager) ReleaseHeldBy(userId uuid.UUID) {
	for _, lk := range m.Active() {
		if lk.HolderId == userId {
			_ = m.Release(lk.Id)
		}
	}
}

// IsLocked returns the live lock on blockId, if any.
func (m *Manager) IsLocked(blockId uuid.UUID) *model.ContentLock {
	if v, found := m.locks.Get(blockId.String()); found {
		lk := *v.(*model.ContentLock)
		return &lk
	}
	return nil
}

// Active returns a copy of every live lock.
func (m *Manager) Active() []*model.ContentLock {
	items := m.locks.Items()
	out := make([]*model.ContentLock, 0, len(items))
	for _, it := range items {
		lk := *it.Object.(*model.ContentLock)
		out = append(out, &lk)
	}
	return out
}

// evicted runs from the janitor (expiry) and from Delete (voluntary
// release or preemption). Only genuine expiries are reported.
func (m *Manager) evicted(_ string, v interface{}) {
	lk := v.(*model.ContentLock)
	m.mu.Lock()
	if _, ok := m.released[lk.Id]; ok {
		delete(m.released, lk.Id)
		m.mu.Unlock()
		return
	}
	delete(m.byId, lk.Id)
	m.mu.Unlock()
	if m.onExpired != nil {
		m.onExpired(*lk)
	}
}
