// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"realtime-collab-be/internal/collab/analytics"
	"realtime-collab-be/internal/model"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	Analytics(documentId uuid.UUID) (analytics.SessionAnalytics, bool)
}

// sessionEvent mirrors the envelope the session coordinator publishes.
type sessionEvent struct {
	Type       string                 `json:"type"`
	DocumentId uuid.UUID              `json:"document_id"`
	Payload    map[string]interface{} `json:"payload"`
}

// consumerService tails the session event topic and maintains the
// per-document analytics aggregates the REST API serves. It is a read-side
// projection; losing it loses metrics, never document state.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string

	mu          sync.RWMutex
	aggregators map[uuid.UUID]*analytics.Aggregator
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string) IConsumerService {
	return &consumerService{
		pubSub:      pubSub,
		topicName:   topicName,
		aggregators: make(map[uuid.UUID]*analytics.Aggregator),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) Analytics(documentId uuid.UUID) (analytics.SessionAnalytics, bool) {
	cs.mu.RLock()
	agg, ok := cs.aggregators[documentId]
	cs.mu.RUnlock()
	if !ok {
		return analytics.SessionAnalytics{}, false
	}
	return agg.Snapshot(), true
}

func (cs *consumerService) aggregatorFor(documentId uuid.UUID) *analytics.Aggregator {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	agg, ok := cs.aggregators[documentId]
	if !ok {
		agg = analytics.NewAggregator(documentId)
		cs.aggregators[documentId] = agg
	}
	return agg
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var event sessionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		log.Printf("[ERROR] Failed to unmarshal session event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	agg := cs.aggregatorFor(event.DocumentId)

	switch event.Type {
	case "operation_committed":
		op := &model.Operation{Type: model.OpType(str(event.Payload, "op_type"))}
		if authorId, err := uuid.Parse(str(event.Payload, "author_id")); err == nil {
			op.AuthorId = authorId
		}
		agg.RecordOperation(op)

	case "operation_rejected":
		agg.RecordRejection()

	case "conflict_detected":
		agg.RecordConflict(&model.ConflictRecord{
			Kind: model.ConflictKind(str(event.Payload, "kind")),
		})

	case "lock_granted":
		agg.RecordLockGranted()

	case "lock_expired":
		agg.RecordLockExpired()

	case "participant_joined", "participant_left":
		if n, ok := event.Payload["participants"].(float64); ok {
			agg.RecordParticipants(int(n))
		}
	}

	msg.Ack()
}

func str(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}
