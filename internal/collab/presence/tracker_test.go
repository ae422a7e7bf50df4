package presence

import (
	"testing"
	"time"

	"realtime-collab-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var editPerms = []model.Permission{model.PermissionEdit}

func TestJoinAssignsDistinctColors(t *testing.T) {
	tr := NewTracker()
	sessionId := uuid.New()

	a := tr.Join(sessionId, uuid.New(), editPerms)
	b := tr.Join(sessionId, uuid.New(), editPerms)

	assert.NotEmpty(t, a.Color)
	assert.NotEmpty(t, b.Color)
	assert.NotEqual(t, a.Color, b.Color)
	assert.True(t, a.IsActive)
	assert.Equal(t, 2, tr.Count())
}

func TestRejoinKeepsEntryAndUpdatesPermissions(t *testing.T) {
	tr := NewTracker()
	sessionId := uuid.New()
	userId := uuid.New()

	first := tr.Join(sessionId, userId, []model.Permission{model.PermissionRead})
	again := tr.Join(sessionId, userId, editPerms)

	assert.Equal(t, first.Color, again.Color)
	assert.Equal(t, editPerms, again.Permissions)
	assert.Equal(t, 1, tr.Count())
}

func TestLeave(t *testing.T) {
	tr := NewTracker()
	userId := uuid.New()
	tr.Join(uuid.New(), userId, editPerms)

	assert.True(t, tr.Leave(userId))
	assert.False(t, tr.Leave(userId), "second leave is a no-op")
	_, ok := tr.Get(userId)
	assert.False(t, ok)
}

func TestUpdateCursorAndSelection(t *testing.T) {
	tr := NewTracker()
	userId := uuid.New()
	blockId := uuid.New()
	tr.Join(uuid.New(), userId, editPerms)

	require.True(t, tr.UpdateCursor(userId, &model.Cursor{BlockId: blockId, Offset: 4}))
	require.True(t, tr.UpdateSelection(userId, &model.Selection{
		Start: model.Cursor{BlockId: blockId, Offset: 1},
		End:   model.Cursor{BlockId: blockId, Offset: 4},
	}))

	p, ok := tr.Get(userId)
	require.True(t, ok)
	require.NotNil(t, p.Cursor)
	assert.Equal(t, 4, p.Cursor.Offset)
	require.NotNil(t, p.Selection)
	assert.Equal(t, 1, p.Selection.Start.Offset)

	// Clearing the selection.
	require.True(t, tr.UpdateSelection(userId, nil))
	p, _ = tr.Get(userId)
	assert.Nil(t, p.Selection)

	assert.False(t, tr.UpdateCursor(uuid.New(), &model.Cursor{}), "unknown participant")
}

func TestIdleSince(t *testing.T) {
	tr := NewTracker()
	idle := uuid.New()
	active := uuid.New()
	tr.Join(uuid.New(), idle, editPerms)
	tr.Join(uuid.New(), active, editPerms)

	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()
	tr.Touch(active)

	got := tr.IdleSince(cutoff)
	require.Len(t, got, 1)
	assert.Equal(t, idle, got[0])
}

func TestSnapshotJoinOrderAndIsolation(t *testing.T) {
	tr := NewTracker()
	first := uuid.New()
	second := uuid.New()
	tr.Join(uuid.New(), first, editPerms)
	tr.Join(uuid.New(), second, editPerms)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, first, snap[0].UserId)
	assert.Equal(t, second, snap[1].UserId)

	snap[0].Permissions[0] = model.PermissionAdmin
	p, _ := tr.Get(first)
	assert.Equal(t, model.PermissionEdit, p.Permissions[0], "snapshot must not alias internal state")
}
