package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"realtime-collab-be/internal/model"
)

// palette cycles presence colors for UI hints, in join order.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
}

// Tracker maintains cursors and selections per participant. Presence is not
// part of the operation log and carries no conflict semantics: last update
// wins per participant. Safe for concurrent use; presence bypasses the
// session mailbox.
type Tracker struct {
	mu           sync.RWMutex
	participants map[uuid.UUID]*model.Participant
	order        []uuid.UUID
	joined       int
}

func NewTracker() *Tracker {
	return &Tracker{participants: make(map[uuid.UUID]*model.Participant)}
}

// Join registers a participant and assigns a presence color. Re-joining
// reactivates the existing entry.
func (t *Tracker) Join(sessionId, userId uuid.UUID, perms []model.Permission) *model.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.participants[userId]; ok {
		p.IsActive = true
		p.LastSeenAt = time.Now()
		p.Permissions = perms
		return p.Clone()
	}
	p := &model.Participant{
		UserId:      userId,
		SessionId:   sessionId,
		IsActive:    true,
		Permissions: perms,
		Color:       palette[t.joined%len(palette)],
		JoinedAt:    time.Now(),
		LastSeenAt:  time.Now(),
	}
	t.joined++
	t.participants[userId] = p
	t.order = append(t.order, userId)
	return p.Clone()
}

// Leave removes the participant. Cursors are ephemeral; nothing survives.
func (t *Tracker) Leave(userId uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.participants[userId]; !ok {
		return false
	}
	delete(t.participants, userId)
	for i, id := range t.order {
		if id == userId {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *Tracker) Get(userId uuid.UUID) (*model.Participant, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.participants[userId]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// UpdateCursor moves the participant's cursor. Last update wins.
func (t *Tracker) UpdateCursor(userId uuid.UUID, cursor *model.Cursor) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.participants[userId]
	if !ok {
		return false
	}
	p.Cursor = cursor
	p.IsActive = true
	p.LastSeenAt = time.Now()
	return true
}

// UpdateSelection sets or clears (nil) the participant's selection.
func (t *Tracker) UpdateSelection(userId uuid.UUID, sel *model.Selection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.participants[userId]
	if !ok {
		return false
	}
	p.Selection = sel
	p.LastSeenAt = time.Now()
	return true
}

// Touch refreshes the participant's activity clock.
func (t *Tracker) Touch(userId uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.participants[userId]; ok {
		p.IsActive = true
		p.LastSeenAt = time.Now()
	}
}

// IdleSince returns participants whose last activity predates the cutoff.
func (t *Tracker) IdleSince(cutoff time.Time) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var idle []uuid.UUID
	for _, p := range t.participants {
		if p.LastSeenAt.Before(cutoff) {
			idle = append(idle, p.UserId)
		}
	}
	return idle
}

// Snapshot returns all participants in join order, for late joiners.
func (t *Tracker) Snapshot() []*model.Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*model.Participant, 0, len(t.order))
	for _, id := range t.order {
		if p, ok := t.participants[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Count returns the number of current participants.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.participants)
}
