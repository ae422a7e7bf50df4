package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"realtime-collab-be/internal/entity"
	"realtime-collab-be/internal/pkg/logger"
	"realtime-collab-be/internal/repository"
	"realtime-collab-be/pkg/events"
	pktNats "realtime-collab-be/pkg/nats"

	"github.com/google/uuid"
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	BroadcastToDocument(documentId uuid.UUID, payload []byte)
}

// NotificationService bridges session events onto the durable NATS bus and
// back: coordinators call Notify to publish, the Start worker consumes the
// stream, persists an inbox row and pushes it to the document room. Going
// through NATS rather than calling the hub directly means notices survive a
// crash between the event and its delivery.
type NotificationService struct {
	repo       repository.NotificationRepository
	publisher  *pktNats.Publisher
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	pub *pktNats.Publisher,
	sub *pktNats.Subscriber,
	delivery NotificationDelivery,
	log logger.ILogger,
) *NotificationService {
	return &NotificationService{
		repo:       repo,
		publisher:  pub,
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Notify publishes a session notice to the event bus. Implements the
// coordinator's notifier port; must never block the session loop, so NATS
// errors are logged and swallowed.
func (s *NotificationService) Notify(eventType string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	event := events.BaseEvent{
		Type:       eventType,
		Data:       payload,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("NotificationService", "Failed to publish notification event", map[string]interface{}{
			"type": eventType, "error": err.Error(),
		})
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("collab.>", "notif-service-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotificationService", "Notification service started, listening to collab.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	// Strip "collab." prefix from type (NATS subject includes the stream
	// subject root)
	typeCode := strings.TrimPrefix(event.EventType(), "collab.")

	payload := event.Payload()
	documentId, err := uuid.Parse(str(payload, "document_id"))
	if err != nil {
		s.logger.Warn("NotificationService", "Event missing document_id", map[string]interface{}{"type": typeCode})
		return nil
	}

	notif := s.buildNotification(documentId, typeCode, payload)
	if notif == nil {
		// Not every bus event is user-facing
		return nil
	}

	if err := s.repo.CreateNotification(ctx, notif); err != nil {
		s.logger.Error("NotificationService", "Failed to persist notification", map[string]interface{}{"error": err.Error()})
		return err
	}

	if s.delivery != nil {
		data, _ := json.Marshal(map[string]interface{}{
			"type": "notification",
			"data": notif,
		})
		s.delivery.BroadcastToDocument(documentId, data)
	}
	return nil
}

func (s *NotificationService) buildNotification(documentId uuid.UUID, typeCode string, payload map[string]interface{}) *entity.Notification {
	var message string
	var userId *uuid.UUID

	switch typeCode {
	case "LOCK_EXPIRED":
		message = "An editing lock expired and its block is writable again."
		if holder, err := uuid.Parse(str(payload, "holder_id")); err == nil {
			userId = &holder
		}
	case "LOCK_PREEMPTED":
		message = "An editing lock was taken over by a higher-priority request."
		if holder, err := uuid.Parse(str(payload, "holder_id")); err == nil {
			userId = &holder
		}
	case "CONFLICT_NEEDS_RESOLUTION":
		message = fmt.Sprintf("An edit conflicts with concurrent changes and needs manual resolution (operation %s).", str(payload, "operation_id"))
	default:
		return nil
	}

	meta, _ := json.Marshal(payload)
	return &entity.Notification{
		Id:         uuid.New(),
		DocumentId: documentId,
		UserId:     userId,
		TypeCode:   typeCode,
		Message:    message,
		Metadata:   string(meta),
		CreatedAt:  time.Now(),
	}
}
