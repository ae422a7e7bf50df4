package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"realtime-collab-be/internal/collab/document"
	"realtime-collab-be/internal/collab/lock"
	"realtime-collab-be/internal/collab/transform"
	"realtime-collab-be/internal/model"
	"realtime-collab-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed author ids so the insert tie-break is predictable: bob's id sorts
// before alice's.
var (
	bobId   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	aliceId = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

var editPerms = []model.Permission{model.PermissionRead, model.PermissionEdit, model.PermissionFormat}

type memStore struct {
	mu    sync.Mutex
	docs  map[uuid.UUID]*model.Document
	saves int
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uuid.UUID]*model.Document)}
}

func (s *memStore) LoadSnapshot(_ context.Context, documentId uuid.UUID) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[documentId]; ok {
		return doc.Clone(), nil
	}
	return nil, nil
}

func (s *memStore) SaveSnapshot(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Id] = doc.Clone()
	s.saves++
	return nil
}

func (s *memStore) saved(documentId uuid.UUID) *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[documentId]
}

type memBroadcaster struct {
	mu        sync.Mutex
	envelopes []model.Envelope
}

func (b *memBroadcaster) BroadcastToDocument(_ uuid.UUID, payload []byte) {
	var env model.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes = append(b.envelopes, env)
}

func (b *memBroadcaster) typeCount(msgType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, env := range b.envelopes {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

type memNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *memNotifier) Notify(eventType string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *memNotifier) has(eventType string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type fixture struct {
	coord    *Coordinator
	store    *memStore
	hub      *memBroadcaster
	notifier *memNotifier
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := Config{
		QueueDepth:              64,
		ManualResolutionTimeout: time.Minute,
		InactivityTimeout:       time.Minute,
		Lock: lock.Config{
			SweepInterval: 50 * time.Millisecond,
			MinDuration:   10 * time.Millisecond,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{
		store:    newMemStore(),
		hub:      &memBroadcaster{},
		notifier: &memNotifier{},
	}
	log := logger.NewZapLogger(t.TempDir()+"/session.log", false)
	coord, err := NewCoordinator(context.Background(), uuid.New(), f.store, f.hub, f.notifier, nil, log, cfg, nil)
	require.NoError(t, err)
	f.coord = coord
	t.Cleanup(func() { _ = coord.Shutdown(context.Background()) })
	return f
}

func (f *fixture) join(t *testing.T, userId uuid.UUID) *model.JoinAck {
	t.Helper()
	ack, err := f.coord.Join(context.Background(), userId, editPerms)
	require.NoError(t, err)
	return ack
}

func (f *fixture) blockId(t *testing.T) uuid.UUID {
	t.Helper()
	doc, err := f.coord.Document(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, doc.Blocks)
	return doc.Blocks[0].Id
}

func (f *fixture) submit(t *testing.T, op *model.Operation) (*model.OperationCommitted, error) {
	t.Helper()
	return f.coord.Submit(context.Background(), op)
}

func insertAt(author, blockId uuid.UUID, base int64, pos int, text string) *model.Operation {
	return &model.Operation{
		Id:          uuid.New(),
		Type:        model.OpInsert,
		AuthorId:    author,
		BaseVersion: base,
		BlockId:     blockId,
		Position:    pos,
		Text:        text,
	}
}

func TestJoinAckCarriesSnapshotAndRoster(t *testing.T) {
	f := newFixture(t, nil)

	ack := f.join(t, aliceId)
	assert.Equal(t, int64(0), ack.Version)
	require.Len(t, ack.Document.Blocks, 1, "a brand-new document opens with one empty text block")
	assert.Equal(t, model.BlockKindText, ack.Document.Blocks[0].Kind)
	require.Len(t, ack.Participants, 1)

	ack = f.join(t, bobId)
	assert.Len(t, ack.Participants, 2)
	assert.Equal(t, 2, f.hub.typeCount(model.MsgParticipantJoined))
}

func TestSubmitCommitsAndBroadcasts(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)

	ack, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "Hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.NewVersion)
	assert.True(t, ack.Operation.Applied)
	assert.Equal(t, int64(1), f.coord.Version())
	assert.Equal(t, 1, f.hub.typeCount(model.MsgOperationCommitted))
}

func TestConcurrentSubmitsConverge(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "Hello"))
	require.NoError(t, err)

	// Bob composed against version 0 and never saw "Hello"; his insert is
	// rebased across it. Bob's id sorts first so his text keeps slot 0.
	ack, err := f.submit(t, insertAt(bobId, blockId, 0, 0, "Hey "))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ack.NewVersion)
	assert.Equal(t, int64(1), ack.Operation.BaseVersion, "rebase advances the base version")

	doc, err := f.coord.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hey Hello", doc.Blocks[0].Content)
}

func TestResubmitIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)

	op := insertAt(aliceId, blockId, 0, 0, "Hello")
	first, err := f.submit(t, op)
	require.NoError(t, err)

	retry, err := f.submit(t, op.Clone())
	require.NoError(t, err)
	assert.Equal(t, first.NewVersion, retry.NewVersion)
	assert.Equal(t, int64(1), f.coord.Version(), "retry must not double-apply")
}

func TestSubmitRejectsVersionAhead(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 5, 0, "x"))
	assert.ErrorIs(t, err, document.ErrVersionAhead)
}

func TestSubmitRequiresJoin(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(bobId, blockId, 0, 0, "x"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSubmitEnforcesPermissions(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.coord.Join(context.Background(), bobId, []model.Permission{model.PermissionRead})
	require.NoError(t, err)
	blockId := f.blockId(t)

	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "x"))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, f.hub.typeCount(model.MsgConflictDetected), "permission conflicts are recorded")

	// Retain only reads; a read-only participant may still submit it.
	retain := &model.Operation{Id: uuid.New(), Type: model.OpRetain, AuthorId: bobId, BlockId: blockId}
	ack, err := f.submit(t, retain)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.NewVersion)
}

func TestLockBlocksOtherWriters(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	lk, err := f.coord.AcquireLock(context.Background(), aliceId, blockId, model.LockKindEdit, time.Minute, 0, false)
	require.NoError(t, err)

	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "x"))
	assert.ErrorIs(t, err, ErrLockHeld)

	// The holder edits freely; release reopens the block for everyone.
	_, err = f.submit(t, insertAt(aliceId, blockId, 0, 0, "a"))
	require.NoError(t, err)

	require.NoError(t, f.coord.ReleaseLock(context.Background(), aliceId, lk.Id))
	_, err = f.submit(t, insertAt(bobId, blockId, 1, 0, "b"))
	require.NoError(t, err)
}

func TestLockExpiryReopensBlock(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.coord.AcquireLock(context.Background(), aliceId, blockId, model.LockKindEdit, 20*time.Millisecond, 0, false)
	require.NoError(t, err)

	op := insertAt(bobId, blockId, 0, 0, "x")
	_, err = f.submit(t, op.Clone())
	require.ErrorIs(t, err, ErrLockHeld)

	// Alice never releases; the lock lapses on its own and bob's
	// resubmission of the same operation goes through.
	require.Eventually(t, func() bool {
		ack, err := f.submit(t, op.Clone())
		return err == nil && ack.NewVersion == 1
	}, 2*time.Second, 20*time.Millisecond)
	// The janitor sweep announces the lapse; it may trail the lazy expiry
	// that already let bob in.
	assert.Eventually(t, func() bool {
		return f.hub.typeCount(model.MsgLockExpired) >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAcquireLockChecks(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)

	t.Run("unknown block", func(t *testing.T) {
		_, err := f.coord.AcquireLock(context.Background(), aliceId, uuid.New(), model.LockKindEdit, time.Minute, 0, false)
		assert.ErrorIs(t, err, document.ErrOutOfBounds)
	})

	t.Run("non-participant", func(t *testing.T) {
		_, err := f.coord.AcquireLock(context.Background(), bobId, blockId, model.LockKindEdit, time.Minute, 0, false)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("contended block broadcasts denial", func(t *testing.T) {
		f.join(t, bobId)
		_, err := f.coord.AcquireLock(context.Background(), aliceId, blockId, model.LockKindEdit, time.Minute, 0, false)
		require.NoError(t, err)
		_, err = f.coord.AcquireLock(context.Background(), bobId, blockId, model.LockKindEdit, time.Minute, 0, false)
		assert.ErrorIs(t, err, lock.ErrAlreadyHeld)
		assert.GreaterOrEqual(t, f.hub.typeCount(model.MsgLockDenied), 1)
	})
}

func TestStructuralConflictEscalates(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "HelloWorld"))
	require.NoError(t, err)

	tail := uuid.New()
	split := &model.Operation{
		Id: uuid.New(), Type: model.OpSplit, AuthorId: aliceId,
		BaseVersion: 1, BlockId: blockId, Position: 5, NewBlockId: &tail,
	}
	_, err = f.submit(t, split)
	require.NoError(t, err)

	// Bob's delete straddles the split point; no single operation can
	// express it against the new structure.
	del := &model.Operation{
		Id: uuid.New(), Type: model.OpDelete, AuthorId: bobId,
		BaseVersion: 1, BlockId: blockId, Position: 3, Length: 5,
	}
	_, err = f.submit(t, del)
	require.Error(t, err)
	assert.ErrorIs(t, err, transform.ErrUnresolvable)
	assert.GreaterOrEqual(t, f.hub.typeCount(model.MsgConflictDetected), 1)
	assert.GreaterOrEqual(t, f.hub.typeCount(model.MsgConflictResolved), 1)
}

func TestManualResolutionAccept(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyManualResolution
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "aaaa"))
	require.NoError(t, err)

	// Bob's insert lands on alice's concurrent range and parks.
	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "b"))
	require.ErrorIs(t, err, ErrResolutionPending)
	assert.True(t, f.notifier.has("CONFLICT_NEEDS_RESOLUTION"))

	open, err := f.coord.OpenConflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, f.coord.ResolveConflict(context.Background(), aliceId, open[0].Id, true))
	assert.Equal(t, int64(2), f.coord.Version(), "accepted operation commits")

	open, err = f.coord.OpenConflicts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestManualResolutionReject(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyManualResolution
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "aaaa"))
	require.NoError(t, err)
	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "b"))
	require.ErrorIs(t, err, ErrResolutionPending)

	open, err := f.coord.OpenConflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, f.coord.ResolveConflict(context.Background(), aliceId, open[0].Id, false))
	assert.Equal(t, int64(1), f.coord.Version(), "rejected operation never applies")

	doc, err := f.coord.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaa", doc.Blocks[0].Content)
}

func TestManualResolutionTimeoutFallsBackToLWW(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyManualResolution
		cfg.ManualResolutionTimeout = 50 * time.Millisecond
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(bobId, blockId, 0, 0, "bbbb"))
	require.NoError(t, err)
	_, err = f.submit(t, insertAt(aliceId, blockId, 0, 0, "a"))
	require.ErrorIs(t, err, ErrResolutionPending)

	// Nobody resolves; both ops were composed at version 0, so the fallback
	// breaks the tie by author id and keeps alice's parked insert.
	assert.Eventually(t, func() bool {
		return f.coord.Version() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestManualTimeoutDiscardsEarlierWrite(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyManualResolution
		cfg.ManualResolutionTimeout = 50 * time.Millisecond
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "aaaa"))
	require.NoError(t, err)
	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "b"))
	require.ErrorIs(t, err, ErrResolutionPending)

	// Bob's id loses the composed-version tie, so the fallback discards his
	// parked op and the document keeps only alice's text.
	assert.Eventually(t, func() bool {
		open, err := f.coord.OpenConflicts(context.Background())
		return err == nil && len(open) == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), f.coord.Version())

	doc, err := f.coord.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaa", doc.Blocks[0].Content)
}

func TestLastWriteWinsTieDiscardsLowerAuthor(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyLastWriteWins
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "aaaa"))
	require.NoError(t, err)

	// Bob also composed at version 0. Rebasing moves his op forward, but
	// last write wins compares the versions the authors actually saw: a tie,
	// which the lower author id loses.
	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "b"))
	assert.ErrorIs(t, err, ErrDiscarded)
	assert.Equal(t, int64(1), f.coord.Version())

	doc, err := f.coord.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aaaa", doc.Blocks[0].Content)

	// Bob catches up and resubmits against the current version; no conflict,
	// commits normally.
	ack, err := f.submit(t, insertAt(bobId, blockId, 1, 0, "b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ack.NewVersion)
}

func TestLastWriteWinsLaterComposedVersionBeatsCommitted(t *testing.T) {
	carolId := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyLastWriteWins
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	f.join(t, carolId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(carolId, blockId, 0, 0, "cc"))
	require.NoError(t, err)

	// Alice also composed at 0; the tie-break shifts her insert past
	// carol's, so it lands at offset 2 without conflicting.
	_, err = f.submit(t, insertAt(aliceId, blockId, 0, 0, "aa"))
	require.NoError(t, err)

	// Bob's insert overlaps alice's committed range, but he composed at
	// version 1 and she at 0: the later write wins despite his lower id.
	ack, err := f.submit(t, insertAt(bobId, blockId, 1, 2, "b"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), ack.NewVersion)
}

func TestAuthorLeaveDiscardsParkedOps(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Strategy = model.StrategyManualResolution
	})
	f.join(t, aliceId)
	f.join(t, bobId)
	blockId := f.blockId(t)

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "aaaa"))
	require.NoError(t, err)
	_, err = f.submit(t, insertAt(bobId, blockId, 0, 0, "b"))
	require.ErrorIs(t, err, ErrResolutionPending)

	require.NoError(t, f.coord.Leave(context.Background(), bobId))

	open, err := f.coord.OpenConflicts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Equal(t, int64(1), f.coord.Version())
}

func TestPresenceUpdates(t *testing.T) {
	f := newFixture(t, nil)
	blockId := f.blockId(t)

	err := f.coord.UpdatePresence(aliceId, &model.Cursor{BlockId: blockId, Offset: 1}, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied, "presence requires membership")

	f.join(t, aliceId)
	require.NoError(t, f.coord.UpdatePresence(aliceId, &model.Cursor{BlockId: blockId, Offset: 1}, nil))
	assert.Equal(t, 1, f.hub.typeCount(model.MsgPresenceChanged))
}

func TestLastLeaveDrainsAndPersists(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)
	documentId := f.coord.DocumentId()

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "Hello"))
	require.NoError(t, err)

	require.NoError(t, f.coord.Leave(context.Background(), aliceId))
	assert.Eventually(t, func() bool {
		return f.coord.State() == StateClosed
	}, time.Second, 10*time.Millisecond)

	saved := f.store.saved(documentId)
	require.NotNil(t, saved, "drain flushes the final snapshot")
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, "Hello", saved.Blocks[0].Content)

	_, err = f.coord.Submit(context.Background(), insertAt(aliceId, blockId, 1, 5, "!"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShutdownIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)

	require.NoError(t, f.coord.Shutdown(context.Background()))
	assert.NoError(t, f.coord.Shutdown(context.Background()))
	assert.Equal(t, StateClosed, f.coord.State())
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)
	documentId := f.coord.DocumentId()

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "persisted"))
	require.NoError(t, err)
	require.NoError(t, f.coord.Shutdown(context.Background()))

	log := logger.NewZapLogger(t.TempDir()+"/session.log", false)
	reopened, err := NewCoordinator(context.Background(), documentId, f.store, f.hub, f.notifier, nil, log, Config{}, nil)
	require.NoError(t, err)
	defer reopened.Shutdown(context.Background())

	doc, err := reopened.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, "persisted", doc.Blocks[0].Content)
}

func TestReopenedSessionResumesVersioning(t *testing.T) {
	f := newFixture(t, nil)
	f.join(t, aliceId)
	blockId := f.blockId(t)
	documentId := f.coord.DocumentId()

	_, err := f.submit(t, insertAt(aliceId, blockId, 0, 0, "Hello"))
	require.NoError(t, err)
	require.NoError(t, f.coord.Shutdown(context.Background()))

	log := logger.NewZapLogger(t.TempDir()+"/session.log", false)
	reopened, err := NewCoordinator(context.Background(), documentId, f.store, f.hub, f.notifier, nil, log, Config{}, nil)
	require.NoError(t, err)
	defer reopened.Shutdown(context.Background())
	_, err = reopened.Join(context.Background(), aliceId, editPerms)
	require.NoError(t, err)
	_, err = reopened.Join(context.Background(), bobId, editPerms)
	require.NoError(t, err)

	// Acks carry document versions, not versions local to the new session.
	ack, err := reopened.Submit(context.Background(), insertAt(aliceId, blockId, 1, 5, "!"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ack.NewVersion)

	// Bob composed against the snapshot version and never saw the "!"; his
	// insert is rebased across it, not rejected as stale.
	ack, err = reopened.Submit(context.Background(), insertAt(bobId, blockId, 1, 5, " World"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), ack.NewVersion)
	assert.Equal(t, int64(2), ack.Operation.BaseVersion, "rebase advances the stale base")

	doc, err := reopened.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", doc.Blocks[0].Content)

	// History before the snapshot horizon is gone; an op composed against
	// it cannot be rebased and is rejected.
	_, err = reopened.Submit(context.Background(), insertAt(bobId, blockId, 0, 0, "x"))
	assert.ErrorIs(t, err, document.ErrVersionBehind)
}

func TestMailboxOverloadFailsFast(t *testing.T) {
	gate := make(chan struct{})
	blocker := &gatedBroadcaster{gate: gate}
	cfg := Config{QueueDepth: 2, InactivityTimeout: time.Minute}
	log := logger.NewZapLogger(t.TempDir()+"/session.log", false)
	store := newMemStore()

	coord, err := NewCoordinator(context.Background(), uuid.New(), store, blocker, nil, nil, log, cfg, nil)
	require.NoError(t, err)
	defer func() {
		close(gate)
		_ = coord.Shutdown(context.Background())
	}()

	// The first join blocks the actor inside the broadcast; everything
	// after that piles up in the mailbox.
	go func() { _, _ = coord.Join(context.Background(), aliceId, editPerms) }()
	require.Eventually(t, func() bool { return blocker.calls() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < cfg.QueueDepth; i++ {
		go func() { _, _ = coord.Join(context.Background(), uuid.New(), editPerms) }()
	}
	require.Eventually(t, func() bool {
		attemptCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := coord.Join(attemptCtx, bobId, editPerms)
		return errors.Is(err, ErrOverloaded)
	}, 2*time.Second, 10*time.Millisecond)
}

type gatedBroadcaster struct {
	gate chan struct{}
	mu   sync.Mutex
	n    int
}

func (g *gatedBroadcaster) BroadcastToDocument(uuid.UUID, []byte) {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
	<-g.gate
}

func (g *gatedBroadcaster) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
