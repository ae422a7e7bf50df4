package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"realtime-collab-be/internal/collab/session"
	"realtime-collab-be/internal/dto"
	"realtime-collab-be/internal/model"
	"realtime-collab-be/internal/pkg/logger"
	"realtime-collab-be/internal/pkg/serverutils"

	"github.com/google/uuid"
)

type ICollabService interface {
	// Websocket protocol entry points (websocket.MessageHandler).
	HandleMessage(ctx context.Context, documentId, userId uuid.UUID, data []byte) []byte
	HandleDisconnect(documentId, userId uuid.UUID)

	// REST surface.
	ListSessions() []dto.SessionSummary
	Snapshot(ctx context.Context, documentId uuid.UUID) (*model.Document, error)
	Conflicts(ctx context.Context, documentId uuid.UUID) ([]*model.ConflictRecord, error)
	ResolveConflict(ctx context.Context, documentId, userId, conflictId uuid.UUID, accept bool) error

	Shutdown(ctx context.Context)
}

type collabService struct {
	registry  *session.Registry
	snapshots session.SnapshotStore
	logger    logger.ILogger
}

func NewCollabService(registry *session.Registry, snapshots session.SnapshotStore, log logger.ILogger) ICollabService {
	return &collabService{
		registry:  registry,
		snapshots: snapshots,
		logger:    log,
	}
}

// HandleMessage decodes one protocol frame and routes it into the
// document's session. The returned bytes are the sender's direct reply;
// nil means nothing to send (broadcasts go through the hub).
func (s *collabService) HandleMessage(ctx context.Context, documentId, userId uuid.UUID, data []byte) []byte {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return s.errorFrame("malformed frame: " + err.Error())
	}

	switch env.Type {
	case model.MsgJoin:
		return s.handleJoin(ctx, documentId, userId, env.Payload)
	case model.MsgLeave:
		return s.handleLeave(ctx, documentId, userId)
	case model.MsgSubmitOperation:
		return s.handleSubmit(ctx, documentId, userId, env.Payload)
	case model.MsgAcquireLock:
		return s.handleAcquireLock(ctx, documentId, userId, env.Payload)
	case model.MsgReleaseLock:
		return s.handleReleaseLock(ctx, documentId, userId, env.Payload)
	case model.MsgUpdatePresence:
		return s.handleUpdatePresence(documentId, userId, env.Payload)
	case model.MsgResolveConflict:
		return s.handleResolveConflict(ctx, documentId, userId, env.Payload)
	default:
		return s.errorFrame("unknown message type: " + env.Type)
	}
}

// HandleDisconnect treats a dropped connection as a leave: locks release,
// parked operations are discarded, committed history stays.
func (s *collabService) HandleDisconnect(documentId, userId uuid.UUID) {
	coord, ok := s.registry.Get(documentId)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := coord.Leave(ctx, userId); err != nil && !errors.Is(err, session.ErrClosed) {
		s.logger.Warn("CollabService", "Leave on disconnect failed", map[string]interface{}{
			"document_id": documentId, "user_id": userId, "error": err.Error(),
		})
	}
}

func (s *collabService) handleJoin(ctx context.Context, documentId, userId uuid.UUID, payload []byte) []byte {
	var req dto.JoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.errorFrame("malformed join payload: " + err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return s.errorFrame(err.Error())
	}

	coord, err := s.registry.GetOrCreate(ctx, documentId)
	if err != nil {
		return s.errorReply(err)
	}
	ack, err := coord.Join(ctx, userId, req.Permissions)
	if err != nil {
		return s.errorReply(err)
	}

	frame, err := model.NewEnvelope(model.MsgJoinAck, ack)
	if err != nil {
		return s.errorReply(err)
	}
	return frame
}

func (s *collabService) handleLeave(ctx context.Context, documentId, userId uuid.UUID) []byte {
	coord, ok := s.registry.Get(documentId)
	if !ok {
		return s.errorReply(session.ErrClosed)
	}
	if err := coord.Leave(ctx, userId); err != nil {
		return s.errorReply(err)
	}
	frame, _ := model.NewEnvelope(model.MsgAck, map[string]string{"action": model.MsgLeave})
	return frame
}

func (s *collabService) handleSubmit(ctx context.Context, documentId, userId uuid.UUID, payload []byte) []byte {
	var req dto.SubmitOperationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.errorFrame("malformed operation payload: " + err.Error())
	}
	if req.Operation == nil {
		return s.errorFrame("operation is required")
	}
	// The connection identity is authoritative, whatever the payload says.
	req.Operation.AuthorId = userId

	coord, ok := s.registry.Get(documentId)
	if !ok {
		return s.errorReply(session.ErrClosed)
	}

	committed, err := coord.Submit(ctx, req.Operation)
	if err != nil {
		frame, _ := model.NewEnvelope(model.MsgOperationRejected, model.OperationRejected{
			OperationId: req.Operation.Id,
			Reason:      session.Reason(err),
			BlockId:     req.Operation.BlockId,
		})
		return frame
	}

	frame, _ := model.NewEnvelope(model.MsgAck, committed)
	return frame
}

func (s *collabService) handleAcquireLock(ctx context.Context, documentId, userId uuid.UUID, payload []byte) []byte {
	var req dto.AcquireLockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.errorFrame("malformed lock payload: " + err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return s.errorFrame(err.Error())
	}

	coord, ok := s.registry.Get(documentId)
	if !ok {
		return s.errorReply(session.ErrClosed)
	}

	lk, err := coord.AcquireLock(ctx, userId, req.BlockId, req.Kind,
		time.Duration(req.DurationMs)*time.Millisecond, req.Priority, req.Breakable)
	if err != nil {
		frame, _ := model.NewEnvelope(model.MsgLockDenied, model.LockDenied{
			BlockId: req.BlockId,
			Reason:  session.Reason(err),
		})
		return frame
	}

	frame, _ := model.NewEnvelope(model.MsgLockGranted, model.LockGranted{Lock: lk})
	return frame
}

func (s *collabService) handleReleaseLock(ctx context.Context, documentId, userId uuid.UUID, payload []byte) []byte {
	var req dto.ReleaseLockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.errorFrame("malformed lock payload: " + err.Error())
	}

	coord, ok := s.registry.Get(documentId)
	if !ok {
		return s.errorReply(session.ErrClosed)
	}
	if err := coord.ReleaseLock(ctx, userId, req.LockId); err != nil {
		return s.errorReply(err)
	}
	frame, _ := model.NewEnvelope(model.MsgAck, map[string]string{"action": model.MsgReleaseLock})
	return frame
}

func (s *collabService) handleUpdatePresence(documentId, userId uuid.UUID, payload []byte) []byte {
	var req dto.UpdatePresenceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.errorFrame("malformed presence payload: " + err.Error())
	}

	coord, ok := s.registry.Get(documentId)
	if !ok {
		return s.errorReply(session.ErrClosed)
	}
	if err := coord.UpdatePresence(userId, req.Cursor, req.Selection); err != nil {
		return s.errorReply(err)
	}
	// Presence is fire-and-forget; the broadcast is the confirmation.
	return nil
}

func (s *collabService) handleResolveConflict(ctx context.Context, documentId, userId uuid.UUID, payload []byte) []byte {
	var req dto.ResolveConflictRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.errorFrame("malformed resolve payload: " + err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return s.errorFrame(err.Error())
	}

	coord, ok := s.registry.Get(documentId)
	if !ok {
		return s.errorReply(session.ErrClosed)
	}
	if err := coord.ResolveConflict(ctx, userId, req.ConflictId, req.Accept); err != nil {
		return s.errorReply(err)
	}
	frame, _ := model.NewEnvelope(model.MsgAck, map[string]string{"action": model.MsgResolveConflict})
	return frame
}

func (s *collabService) ListSessions() []dto.SessionSummary {
	coords := s.registry.List()
	out := make([]dto.SessionSummary, 0, len(coords))
	for _, c := range coords {
		out = append(out, dto.SessionSummary{
			SessionId:    c.SessionId(),
			DocumentId:   c.DocumentId(),
			State:        c.State().String(),
			Version:      c.Version(),
			Participants: len(c.Participants()),
		})
	}
	return out
}

// Snapshot serves the live document when a session is open, otherwise the
// persisted snapshot.
func (s *collabService) Snapshot(ctx context.Context, documentId uuid.UUID) (*model.Document, error) {
	if coord, ok := s.registry.Get(documentId); ok {
		doc, err := coord.Document(ctx)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, session.ErrClosed) {
			return nil, err
		}
	}
	return s.snapshots.LoadSnapshot(ctx, documentId)
}

func (s *collabService) Conflicts(ctx context.Context, documentId uuid.UUID) ([]*model.ConflictRecord, error) {
	coord, ok := s.registry.Get(documentId)
	if !ok {
		return []*model.ConflictRecord{}, nil
	}
	return coord.OpenConflicts(ctx)
}

func (s *collabService) ResolveConflict(ctx context.Context, documentId, userId, conflictId uuid.UUID, accept bool) error {
	coord, ok := s.registry.Get(documentId)
	if !ok {
		return session.ErrClosed
	}
	return coord.ResolveConflict(ctx, userId, conflictId, accept)
}

func (s *collabService) Shutdown(ctx context.Context) {
	s.registry.CloseAll(ctx)
}

func (s *collabService) errorReply(err error) []byte {
	frame, _ := model.NewEnvelope(model.MsgError, map[string]string{
		"message": err.Error(),
		"code":    session.Reason(err),
	})
	return frame
}

func (s *collabService) errorFrame(message string) []byte {
	frame, _ := model.NewEnvelope(model.MsgError, map[string]string{
		"message": message,
		"code":    "bad_request",
	})
	return frame
}
