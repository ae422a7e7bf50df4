package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"realtime-collab-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Hub struct {
	// Registered clients map: DocumentID -> List of Clients (one per
	// participant connection, multi-device included)
	clients map[uuid.UUID][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out
	rdb *redis.Client

	// instanceId lets the subscriber skip messages this instance published,
	// otherwise every local broadcast would be delivered twice.
	instanceId string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.DocumentID] = append(h.clients[client.DocumentID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{
				"user_id": client.UserID, "document_id": client.DocumentID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.DocumentID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.DocumentID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.DocumentID]) == 0 {
					delete(h.clients, client.DocumentID)
					h.logger.Info("Hub", "Document room emptied", map[string]interface{}{
						"document_id": client.DocumentID,
					})
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToDocument sends a payload to every client editing a document,
// here and on other instances via Redis.
func (h *Hub) BroadcastToDocument(documentId uuid.UUID, payload []byte) {
	h.sendLocal(documentId, payload)

	if h.rdb != nil {
		wrapped, _ := json.Marshal(map[string]interface{}{
			"origin":             h.instanceId,
			"target_document_id": documentId.String(),
			"message":            json.RawMessage(payload),
		})
		h.rdb.Publish(context.Background(), "collab_events", wrapped)
	}
}

func (h *Hub) sendLocal(documentId uuid.UUID, payload []byte) {
	// The read lock is held across the sends: Run closes Send channels only
	// under the write lock, so a channel cannot be closed mid-send. The
	// sends never block (buffered channel with a drop fallback), so the
	// lock is held briefly.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[documentId] {
		select {
		case client.Send <- payload:
		default:
			// Closing the connection makes the read pump exit and run the
			// one unregister for this client; closing Send here would race
			// the pump's own reply sends.
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
				"user_id": client.UserID, "document_id": client.DocumentID,
			})
			client.Conn.Close()
		}
	}
}

// subscribeToRedis delivers cross-instance broadcasts. Every instance
// subscribes to the shared channel and forwards messages for documents it
// hosts locally; messages for unknown documents are ignored.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "collab_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			Origin           string          `json:"origin"`
			TargetDocumentID string          `json:"target_document_id"`
			Message          json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		if payload.Origin == h.instanceId {
			continue
		}

		docId, err := uuid.Parse(payload.TargetDocumentID)
		if err != nil {
			continue
		}

		h.sendLocal(docId, payload.Message)
	}
}
