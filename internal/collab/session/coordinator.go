package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"realtime-collab-be/internal/collab/conflict"
	"realtime-collab-be/internal/collab/document"
	"realtime-collab-be/internal/collab/lock"
	"realtime-collab-be/internal/collab/oplog"
	"realtime-collab-be/internal/collab/presence"
	"realtime-collab-be/internal/collab/transform"
	"realtime-collab-be/internal/model"
	"realtime-collab-be/internal/pkg/logger"
)

type State int32

const (
	StateInitializing State = iota
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type reqKind int

const (
	reqJoin reqKind = iota
	reqLeave
	reqSubmit
	reqAcquireLock
	reqReleaseLock
	reqResolveConflict
	reqManualTimeout
	reqLockExpired
	reqLockPreempted
	reqIdleSweep
	reqOpenConflicts
	reqDocument
	reqShutdown
)

type request struct {
	kind reqKind

	userId     uuid.UUID
	perms      []model.Permission
	op         *model.Operation
	blockId    uuid.UUID
	lockKind   model.LockKind
	duration   time.Duration
	priority   int
	breakable  bool
	lockId     uuid.UUID
	conflictId uuid.UUID
	accept     bool
	lock       model.ContentLock
	byUserId   uuid.UUID

	reply chan result
}

type result struct {
	joinAck   *model.JoinAck
	committed *model.OperationCommitted
	lock      *model.ContentLock
	conflicts []*model.ConflictRecord
	document  *model.Document
	err       error
}

type parkedOp struct {
	op       *model.Operation
	authorId uuid.UUID
	records  []*model.ConflictRecord
	timer    *time.Timer
}

// Coordinator is the single-writer authority for one document. Every
// mutating call funnels through its mailbox, so applied operations are
// totally ordered: the order the log records and the order that makes the
// OT tie-break deterministic. Presence bypasses the mailbox; it carries no
// ordering guarantee.
type Coordinator struct {
	sessionId  uuid.UUID
	documentId uuid.UUID
	state      atomic.Int32
	version    atomic.Int64

	doc      *document.Model
	log      *oplog.Log
	engine   *transform.Engine
	detector *conflict.Detector
	resolver conflict.Resolver
	locks    *lock.Manager
	presence *presence.Tracker

	conflicts    map[uuid.UUID]*model.ConflictRecord
	parked       map[uuid.UUID]*parkedOp // keyed by operation id
	conflictToOp map[uuid.UUID]uuid.UUID

	mailbox chan *request
	closed  chan struct{}

	snapshots   SnapshotStore
	broadcaster Broadcaster
	notifier    Notifier
	publisher   EventPublisher
	logger      logger.ILogger
	onClosed    func(documentId uuid.UUID)

	cfg Config
}

// NewCoordinator loads the document snapshot from the persistence
// collaborator, builds the session and starts its actor loop. No operations
// are accepted until the snapshot load completes.
func NewCoordinator(
	ctx context.Context,
	documentId uuid.UUID,
	snapshots SnapshotStore,
	broadcaster Broadcaster,
	notifier Notifier,
	publisher EventPublisher,
	log logger.ILogger,
	cfg Config,
	onClosed func(uuid.UUID),
) (*Coordinator, error) {
	cfg.defaults()

	c := &Coordinator{
		sessionId:    uuid.New(),
		documentId:   documentId,
		engine:       transform.NewEngine(cfg.TieBreak),
		detector:     conflict.NewDetector(),
		resolver:     conflict.ForStrategy(cfg.Strategy),
		presence:     presence.NewTracker(),
		conflicts:    make(map[uuid.UUID]*model.ConflictRecord),
		parked:       make(map[uuid.UUID]*parkedOp),
		conflictToOp: make(map[uuid.UUID]uuid.UUID),
		mailbox:      make(chan *request, cfg.QueueDepth),
		closed:       make(chan struct{}),
		snapshots:    snapshots,
		broadcaster:  broadcaster,
		notifier:     notifier,
		publisher:    publisher,
		logger:       log,
		onClosed:     onClosed,
		cfg:          cfg,
	}
	c.state.Store(int32(StateInitializing))
	c.locks = lock.NewManager(cfg.Lock, c.lockExpired, c.lockPreempted)

	snap, err := snapshots.LoadSnapshot(ctx, documentId)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", documentId, err)
	}
	if snap == nil {
		// First open of a brand-new document: a single empty text block.
		c.doc = document.New(documentId, []*model.Block{{
			Id:   uuid.New(),
			Kind: model.BlockKindText,
		}})
	} else {
		c.doc = document.FromSnapshot(snap)
	}
	// The log continues where the snapshot left off, so sequence numbers
	// stay equal to document versions across a close and reopen.
	c.log = oplog.New(c.doc.Version())

	c.version.Store(c.doc.Version())
	c.state.Store(int32(StateActive))
	go c.run()

	c.logger.Info("Session", "Session opened", map[string]interface{}{
		"document_id": documentId, "session_id": c.sessionId, "version": c.doc.Version(),
	})
	return c, nil
}

func (c *Coordinator) State() State          { return State(c.state.Load()) }
func (c *Coordinator) DocumentId() uuid.UUID { return c.documentId }
func (c *Coordinator) SessionId() uuid.UUID  { return c.sessionId }

// Participants returns the current roster in join order.
func (c *Coordinator) Participants() []*model.Participant {
	return c.presence.Snapshot()
}

// Version returns the committed document version.
func (c *Coordinator) Version() int64 {
	return c.version.Load()
}

// OpenConflicts returns unresolved conflict records, for UIs offering
// manual resolution.
func (c *Coordinator) OpenConflicts(ctx context.Context) ([]*model.ConflictRecord, error) {
	res, err := c.post(ctx, &request{kind: reqOpenConflicts})
	if err != nil {
		return nil, err
	}
	return res.conflicts, res.err
}

// Document returns a copy of the current document state.
func (c *Coordinator) Document(ctx context.Context) (*model.Document, error) {
	res, err := c.post(ctx, &request{kind: reqDocument})
	if err != nil {
		return nil, err
	}
	return res.document, res.err
}

// Join adds a participant and returns the snapshot, version and roster.
func (c *Coordinator) Join(ctx context.Context, userId uuid.UUID, perms []model.Permission) (*model.JoinAck, error) {
	res, err := c.post(ctx, &request{kind: reqJoin, userId: userId, perms: perms})
	if err != nil {
		return nil, err
	}
	return res.joinAck, res.err
}

// Leave removes a participant, releases their locks and discards their
// parked operations. The last leave drains and closes the session.
func (c *Coordinator) Leave(ctx context.Context, userId uuid.UUID) error {
	res, err := c.post(ctx, &request{kind: reqLeave, userId: userId})
	if err != nil {
		return err
	}
	return res.err
}

// Submit runs the full pipeline: permission check, rebase, conflict
// detection, resolution, apply, log append, broadcast. The broadcast and the
// returned ack carry the transformed operation, not the original, so every
// replica applies the same bytes.
func (c *Coordinator) Submit(ctx context.Context, op *model.Operation) (*model.OperationCommitted, error) {
	res, err := c.post(ctx, &request{kind: reqSubmit, op: op})
	if err != nil {
		return nil, err
	}
	return res.committed, res.err
}

// AcquireLock requests an exclusive lock on a block.
func (c *Coordinator) AcquireLock(ctx context.Context, userId, blockId uuid.UUID, kind model.LockKind, d time.Duration, priority int, breakable bool) (*model.ContentLock, error) {
	res, err := c.post(ctx, &request{
		kind: reqAcquireLock, userId: userId, blockId: blockId,
		lockKind: kind, duration: d, priority: priority, breakable: breakable,
	})
	if err != nil {
		return nil, err
	}
	return res.lock, res.err
}

// ReleaseLock releases a lock by id.
func (c *Coordinator) ReleaseLock(ctx context.Context, userId, lockId uuid.UUID) error {
	res, err := c.post(ctx, &request{kind: reqReleaseLock, userId: userId, lockId: lockId})
	if err != nil {
		return err
	}
	return res.err
}

// ResolveConflict lets a participant with edit permission settle a parked
// manual-resolution conflict: accept applies the operation, reject discards.
func (c *Coordinator) ResolveConflict(ctx context.Context, userId, conflictId uuid.UUID, accept bool) error {
	res, err := c.post(ctx, &request{kind: reqResolveConflict, userId: userId, conflictId: conflictId, accept: accept})
	if err != nil {
		return err
	}
	return res.err
}

// UpdatePresence records a cursor/selection move and broadcasts it
// immediately. It does not pass through the mailbox: presence is
// last-update-wins and outside the operation order.
func (c *Coordinator) UpdatePresence(userId uuid.UUID, cursor *model.Cursor, selection *model.Selection) error {
	if c.State() != StateActive {
		return ErrClosed
	}
	if _, ok := c.presence.Get(userId); !ok {
		return fmt.Errorf("user %s is not a participant: %w", userId, ErrPermissionDenied)
	}
	c.presence.UpdateCursor(userId, cursor)
	c.presence.UpdateSelection(userId, selection)
	c.broadcast(model.MsgPresenceChanged, model.PresenceChanged{
		UserId: userId, Cursor: cursor, Selection: selection, IsActive: true,
	})
	return nil
}

// Shutdown drains and closes the session regardless of participants, e.g.
// on server stop. The final document state is flushed first.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	res, err := c.post(ctx, &request{kind: reqShutdown})
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	return res.err
}

// post delivers a request to the actor loop, failing fast when the mailbox
// is full. ctx cancellation abandons only the caller's wait; a request
// already queued may still be processed.
func (c *Coordinator) post(ctx context.Context, req *request) (result, error) {
	if c.State() == StateClosed {
		return result{}, ErrClosed
	}
	req.reply = make(chan result, 1)
	select {
	case c.mailbox <- req:
	default:
		return result{}, fmt.Errorf("mailbox depth %d exceeded: %w", c.cfg.QueueDepth, ErrOverloaded)
	}
	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-c.closed:
		return result{}, ErrClosed
	}
}

// postAsync is for internal timer/callback events. Dropping under pressure
// is fine; expiry and sweep events regenerate.
func (c *Coordinator) postAsync(req *request) {
	select {
	case c.mailbox <- req:
	default:
	}
}

func (c *Coordinator) run() {
	idle := time.NewTicker(c.cfg.InactivityTimeout / 2)
	defer idle.Stop()
	for {
		select {
		case req := <-c.mailbox:
			c.handle(req)
			if c.State() == StateClosed {
				c.rejectRemaining()
				return
			}
		case <-idle.C:
			c.expireIdleParticipants()
			if c.State() == StateClosed {
				c.rejectRemaining()
				return
			}
		}
	}
}

func (c *Coordinator) handle(req *request) {
	if c.State() != StateActive && req.kind != reqShutdown {
		req.respond(result{err: ErrClosed})
		return
	}
	switch req.kind {
	case reqJoin:
		req.respond(c.handleJoin(req))
	case reqLeave:
		req.respond(c.handleLeave(req))
	case reqSubmit:
		req.respond(c.handleSubmit(req))
	case reqAcquireLock:
		req.respond(c.handleAcquireLock(req))
	case reqReleaseLock:
		req.respond(c.handleReleaseLock(req))
	case reqResolveConflict:
		req.respond(c.handleResolveConflict(req))
	case reqManualTimeout:
		c.handleManualTimeout(req.op.Id)
	case reqLockExpired:
		c.handleLockExpired(req.lock)
	case reqLockPreempted:
		c.handleLockPreempted(req.lock, req.byUserId)
	case reqIdleSweep:
		c.expireIdleParticipants()
	case reqOpenConflicts:
		open := make([]*model.ConflictRecord, 0)
		for _, rec := range c.conflicts {
			if !rec.Resolved() {
				open = append(open, rec)
			}
		}
		req.respond(result{conflicts: open})
	case reqDocument:
		req.respond(result{document: c.doc.Snapshot()})
	case reqShutdown:
		c.drain()
		req.respond(result{})
	}
}

func (req *request) respond(res result) {
	if req.reply != nil {
		req.reply <- res
	}
}

func (c *Coordinator) rejectRemaining() {
	for {
		select {
		case req := <-c.mailbox:
			req.respond(result{err: ErrClosed})
		default:
			return
		}
	}
}

////////////////////////////////////////
// Handlers (actor loop only)

func (c *Coordinator) handleJoin(req *request) result {
	p := c.presence.Join(c.sessionId, req.userId, req.perms)
	c.broadcast(model.MsgParticipantJoined, model.ParticipantJoined{Participant: p})
	c.publishEvent("participant_joined", map[string]interface{}{
		"user_id": req.userId, "participants": c.presence.Count(),
	})
	return result{joinAck: &model.JoinAck{
		Document:     c.doc.Snapshot(),
		Version:      c.doc.Version(),
		Participants: c.presence.Snapshot(),
	}}
}

func (c *Coordinator) handleLeave(req *request) result {
	if !c.presence.Leave(req.userId) {
		return result{err: fmt.Errorf("user %s is not a participant: %w", req.userId, ErrPermissionDenied)}
	}
	// Disconnect cancels outstanding work only: parked ops go away, held
	// locks are released, committed operations are never rolled back.
	c.discardParkedBy(req.userId, "author left")
	c.locks.ReleaseHeldBy(req.userId)
	c.broadcast(model.MsgParticipantLeft, model.ParticipantLeft{UserId: req.userId})
	c.publishEvent("participant_left", map[string]interface{}{
		"user_id": req.userId, "participants": c.presence.Count(),
	})
	if c.presence.Count() == 0 {
		c.drain()
	}
	return result{}
}

func (c *Coordinator) handleSubmit(req *request) result {
	op := req.op

	// Idempotent retry: a resubmitted committed op acks without re-applying.
	if committed, ok := c.log.Get(op.Id); ok {
		seq, _ := c.log.Append(committed)
		return result{committed: &model.OperationCommitted{Operation: committed, NewVersion: seq}}
	}

	p, ok := c.presence.Get(op.AuthorId)
	if !ok {
		return result{err: fmt.Errorf("author %s has not joined: %w", op.AuthorId, ErrPermissionDenied)}
	}
	if !p.Has(requiredPermission(op.Type)) {
		rec := c.detector.NewPermissionConflict(op)
		c.trackConflict(rec)
		c.rejectOp(op, ErrPermissionDenied)
		return result{err: fmt.Errorf("%s requires %s: %w", op.Type, requiredPermission(op.Type), ErrPermissionDenied)}
	}
	c.presence.Touch(op.AuthorId)

	if op.BaseVersion > c.doc.Version() {
		err := fmt.Errorf("base %d ahead of document %d: %w", op.BaseVersion, c.doc.Version(), document.ErrVersionAhead)
		c.rejectOp(op, err)
		return result{err: err}
	}
	if op.BaseVersion < c.log.Base() {
		// Composed before the snapshot this session opened from; the ops it
		// would need to rebase across are gone.
		err := fmt.Errorf("base %d predates session history at %d: %w", op.BaseVersion, c.log.Base(), document.ErrVersionBehind)
		c.rejectOp(op, err)
		return result{err: err}
	}
	op.ComposedVersion = op.BaseVersion

	// Rebase across everything committed since the op's base version.
	concurrent := c.log.Since(op.BaseVersion)
	transformed, err := c.engine.Rebase(op, concurrent)
	if err != nil {
		if errors.Is(err, transform.ErrUnresolvable) {
			return result{err: c.escalateStructureChange(op, err)}
		}
		c.rejectOp(op, err)
		return result{err: err}
	}

	// Lock arbitration: a non-breakable lock held by someone else rejects
	// outright, never auto-resolves.
	if lk := c.locks.IsLocked(transformed.BlockId); lk != nil && lk.HolderId != op.AuthorId && !lk.Breakable && mutates(op.Type) {
		rec := c.detector.NewLockViolation(transformed, lk)
		c.trackConflict(rec)
		c.rejectOp(op, ErrLockHeld)
		return result{err: fmt.Errorf("block %s: %w", transformed.BlockId, ErrLockHeld)}
	}

	// Conflict detection against the concurrent window, then resolution.
	records := c.detector.Detect(transformed, concurrent)
	for _, rec := range records {
		rec.Strategy = c.resolver.Strategy()
		other, _ := c.log.Get(rec.OperationB)
		res, rerr := c.resolver.Resolve(rec, transformed, other)
		if rerr != nil {
			c.rejectOp(op, rerr)
			return result{err: rerr}
		}
		c.trackConflict(rec)
		if res.Deferred {
			c.park(transformed, records)
			return result{err: fmt.Errorf("conflict %s: %w", rec.Id, ErrResolutionPending)}
		}
		if res.Accepted == nil {
			c.rejectOp(op, ErrDiscarded)
			return result{err: fmt.Errorf("conflict %s: %w", rec.Id, ErrDiscarded)}
		}
		c.broadcast(model.MsgConflictResolved, model.ConflictResolved{ConflictId: rec.Id, Resolution: rec.Resolution})
		c.publishEvent("conflict_resolved", map[string]interface{}{"conflict_id": rec.Id, "resolution": rec.Resolution})
	}

	committed, err := c.commit(transformed)
	if err != nil {
		c.rejectOp(op, err)
		return result{err: err}
	}
	return result{committed: committed}
}

// commit applies a rebased operation, appends it to the log and broadcasts
// the result. A VersionBehind here would mean more ops landed between rebase
// and apply inside the same loop iteration; recovery is to rebase once more
// and retry once.
func (c *Coordinator) commit(op *model.Operation) (*model.OperationCommitted, error) {
	err := c.doc.Apply(op)
	if errors.Is(err, document.ErrVersionBehind) {
		var rerr error
		op, rerr = c.engine.Rebase(op, c.log.Since(op.BaseVersion))
		if rerr != nil {
			return nil, rerr
		}
		err = c.doc.Apply(op)
	}
	if err != nil {
		return nil, err
	}

	op.Applied = true
	op.CommittedAt = time.Now()
	seq, _ := c.log.Append(op)
	c.version.Store(c.doc.Version())

	ack := &model.OperationCommitted{Operation: op, NewVersion: seq}
	c.broadcast(model.MsgOperationCommitted, ack)
	c.publishEvent("operation_committed", map[string]interface{}{
		"operation_id": op.Id, "op_type": string(op.Type),
		"author_id": op.AuthorId, "version": seq,
	})
	return ack, nil
}

func (c *Coordinator) handleAcquireLock(req *request) result {
	p, ok := c.presence.Get(req.userId)
	if !ok || !p.Has(model.PermissionEdit) {
		return result{err: fmt.Errorf("user %s cannot lock: %w", req.userId, ErrPermissionDenied)}
	}
	if _, found := c.doc.Block(req.blockId); !found {
		return result{err: fmt.Errorf("block %s: %w", req.blockId, document.ErrOutOfBounds)}
	}
	lk, err := c.locks.Acquire(req.blockId, req.userId, req.lockKind, req.duration, req.priority, req.breakable)
	if err != nil {
		c.broadcast(model.MsgLockDenied, model.LockDenied{BlockId: req.blockId, Reason: Reason(err)})
		return result{err: err}
	}
	c.broadcast(model.MsgLockGranted, model.LockGranted{Lock: lk})
	c.publishEvent("lock_granted", map[string]interface{}{"lock_id": lk.Id, "block_id": lk.BlockId, "holder_id": lk.HolderId})
	return result{lock: lk}
}

func (c *Coordinator) handleReleaseLock(req *request) result {
	if err := c.locks.Release(req.lockId); err != nil {
		return result{err: err}
	}
	return result{}
}

func (c *Coordinator) handleResolveConflict(req *request) result {
	p, ok := c.presence.Get(req.userId)
	if !ok || !p.Has(model.PermissionEdit) {
		return result{err: fmt.Errorf("user %s cannot resolve conflicts: %w", req.userId, ErrPermissionDenied)}
	}
	opId, ok := c.conflictToOp[req.conflictId]
	if !ok {
		return result{err: fmt.Errorf("conflict %s has no pending operation: %w", req.conflictId, lock.ErrNotFound)}
	}
	parked := c.parked[opId]
	c.unpark(opId)

	if req.accept {
		c.settleParked(parked, "accepted by "+req.userId.String())
	} else {
		c.discardParked(parked, "rejected by "+req.userId.String())
	}
	return result{}
}

// handleManualTimeout fires when a manual conflict outlived its window: the
// configured fallback is last-write-wins.
func (c *Coordinator) handleManualTimeout(opId uuid.UUID) {
	parked, ok := c.parked[opId]
	if !ok {
		return
	}
	c.unpark(opId)

	lww := conflict.LWWResolver{}
	keep := true
	for _, rec := range parked.records {
		other, _ := c.log.Get(rec.OperationB)
		res, err := lww.Resolve(rec, parked.op, other)
		if err != nil || res.Accepted == nil {
			keep = false
		}
	}
	if keep {
		c.settleParked(parked, "manual resolution timed out, last write wins")
	} else {
		c.discardParked(parked, "manual resolution timed out, operation discarded")
	}
}

func (c *Coordinator) handleLockExpired(lk model.ContentLock) {
	c.broadcast(model.MsgLockExpired, model.LockExpired{LockId: lk.Id, BlockId: lk.BlockId})
	c.publishEvent("lock_expired", map[string]interface{}{"lock_id": lk.Id, "block_id": lk.BlockId})
	if c.notifier != nil {
		c.notifier.Notify("LOCK_EXPIRED", map[string]interface{}{
			"document_id": c.documentId, "lock_id": lk.Id, "holder_id": lk.HolderId,
		})
	}
}

func (c *Coordinator) handleLockPreempted(lk model.ContentLock, by uuid.UUID) {
	c.broadcast(model.MsgLockPreempted, model.LockPreempted{
		LockId: lk.Id, BlockId: lk.BlockId, HolderId: lk.HolderId, ByUserId: by,
	})
	if c.notifier != nil {
		c.notifier.Notify("LOCK_PREEMPTED", map[string]interface{}{
			"document_id": c.documentId, "lock_id": lk.Id,
			"holder_id": lk.HolderId, "by_user_id": by,
		})
	}
}

func (c *Coordinator) expireIdleParticipants() {
	cutoff := time.Now().Add(-c.cfg.InactivityTimeout)
	for _, userId := range c.presence.IdleSince(cutoff) {
		c.logger.Info("Session", "Expiring idle participant", map[string]interface{}{
			"document_id": c.documentId, "user_id": userId,
		})
		c.handleLeave(&request{kind: reqLeave, userId: userId})
	}
}

////////////////////////////////////////
// Parked (manual resolution) operations

func (c *Coordinator) park(op *model.Operation, records []*model.ConflictRecord) {
	parked := &parkedOp{op: op, authorId: op.AuthorId, records: records}
	parked.timer = time.AfterFunc(c.cfg.ManualResolutionTimeout, func() {
		c.postAsync(&request{kind: reqManualTimeout, op: op})
	})
	c.parked[op.Id] = parked
	for _, rec := range records {
		c.conflictToOp[rec.Id] = op.Id
	}
	if c.notifier != nil {
		c.notifier.Notify("CONFLICT_NEEDS_RESOLUTION", map[string]interface{}{
			"document_id": c.documentId, "operation_id": op.Id,
		})
	}
}

func (c *Coordinator) unpark(opId uuid.UUID) {
	parked, ok := c.parked[opId]
	if !ok {
		return
	}
	parked.timer.Stop()
	delete(c.parked, opId)
	for _, rec := range parked.records {
		delete(c.conflictToOp, rec.Id)
	}
}

// settleParked applies a previously parked operation. The document may have
// moved on while it waited, so it is rebased across the gap first.
func (c *Coordinator) settleParked(parked *parkedOp, resolution string) {
	op := parked.op
	if op.BaseVersion < c.doc.Version() {
		rebased, err := c.engine.Rebase(op, c.log.Since(op.BaseVersion))
		if err != nil {
			c.discardParked(parked, "stale after waiting: "+Reason(err))
			return
		}
		op = rebased
	}
	c.markResolved(parked.records, resolution)
	if _, err := c.commit(op); err != nil {
		c.rejectOp(op, err)
	}
}

func (c *Coordinator) discardParked(parked *parkedOp, resolution string) {
	c.markResolved(parked.records, resolution)
	c.rejectOp(parked.op, ErrDiscarded)
}

func (c *Coordinator) discardParkedBy(userId uuid.UUID, resolution string) {
	for opId, parked := range c.parked {
		if parked.authorId == userId {
			c.unpark(opId)
			c.markResolved(parked.records, resolution)
		}
	}
}

func (c *Coordinator) markResolved(records []*model.ConflictRecord, resolution string) {
	now := time.Now()
	for _, rec := range records {
		if rec.ResolvedAt == nil {
			rec.Resolution = resolution
			rec.ResolvedAt = &now
		}
		c.broadcast(model.MsgConflictResolved, model.ConflictResolved{ConflictId: rec.Id, Resolution: resolution})
		c.publishEvent("conflict_resolved", map[string]interface{}{"conflict_id": rec.Id, "resolution": resolution})
	}
}

////////////////////////////////////////
// Shared helpers (actor loop only)

func (c *Coordinator) escalateStructureChange(op *model.Operation, cause error) error {
	rec := c.detector.NewStructureChange(op)
	rec.Strategy = c.resolver.Strategy()
	c.trackConflict(rec)

	// The operation cannot be transformed onto the new structure, so every
	// strategy ends the same way: the record survives, the op does not.
	now := time.Now()
	rec.Resolution = "discarded: " + cause.Error()
	rec.ResolvedAt = &now
	c.broadcast(model.MsgConflictResolved, model.ConflictResolved{ConflictId: rec.Id, Resolution: rec.Resolution})
	c.rejectOp(op, cause)
	return fmt.Errorf("conflict %s: %w", rec.Id, cause)
}

func (c *Coordinator) trackConflict(rec *model.ConflictRecord) {
	c.conflicts[rec.Id] = rec
	c.broadcast(model.MsgConflictDetected, model.ConflictDetected{Conflict: rec})
	c.publishEvent("conflict_detected", map[string]interface{}{
		"conflict_id": rec.Id, "kind": string(rec.Kind), "severity": string(rec.Severity),
	})
}

// rejectOp surfaces a rejection to the submitting client only; rejections
// are not part of history and are never broadcast as commits.
func (c *Coordinator) rejectOp(op *model.Operation, cause error) {
	c.publishEvent("operation_rejected", map[string]interface{}{
		"operation_id": op.Id, "reason": Reason(cause),
	})
}

func (c *Coordinator) broadcast(msgType string, payload interface{}) {
	data, err := model.NewEnvelope(msgType, payload)
	if err != nil {
		c.logger.Error("Session", "Broadcast marshal failed", map[string]interface{}{"error": err.Error(), "type": msgType})
		return
	}
	c.broadcaster.BroadcastToDocument(c.documentId, data)
}

func (c *Coordinator) publishEvent(eventType string, payload map[string]interface{}) {
	if c.publisher == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"type":        eventType,
		"document_id": c.documentId,
		"payload":     payload,
		"at":          time.Now(),
	})
	if err != nil {
		return
	}
	if err := c.publisher.Publish(context.Background(), body); err != nil {
		c.logger.Warn("Session", "Event publish failed", map[string]interface{}{"error": err.Error(), "type": eventType})
	}
}

// drain flushes the final document state to the persistence collaborator
// and closes the session. Runs in the actor loop; after it returns the loop
// rejects whatever is still queued.
func (c *Coordinator) drain() {
	if c.State() != StateActive {
		return
	}
	c.state.Store(int32(StateDraining))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.snapshots.SaveSnapshot(ctx, c.doc.Snapshot()); err != nil {
		c.logger.Error("Session", "Snapshot flush failed", map[string]interface{}{
			"document_id": c.documentId, "error": err.Error(),
		})
	}
	for _, parked := range c.parked {
		parked.timer.Stop()
	}

	c.state.Store(int32(StateClosed))
	close(c.closed)
	c.publishEvent("session_closed", map[string]interface{}{
		"session_id": c.sessionId, "final_version": c.doc.Version(),
	})
	c.logger.Info("Session", "Session closed", map[string]interface{}{
		"document_id": c.documentId, "final_version": c.doc.Version(),
	})
	if c.onClosed != nil {
		c.onClosed(c.documentId)
	}
}

func (c *Coordinator) lockExpired(lk model.ContentLock) {
	c.postAsync(&request{kind: reqLockExpired, lock: lk})
}

func (c *Coordinator) lockPreempted(lk model.ContentLock, by uuid.UUID) {
	c.postAsync(&request{kind: reqLockPreempted, lock: lk, byUserId: by})
}

func requiredPermission(t model.OpType) model.Permission {
	switch t {
	case model.OpFormat:
		return model.PermissionFormat
	case model.OpRetain:
		return model.PermissionRead
	default:
		return model.PermissionEdit
	}
}

func mutates(t model.OpType) bool {
	return t != model.OpRetain
}
