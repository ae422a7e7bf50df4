package websocket

import (
	"sync"
	"testing"
	"time"

	"realtime-collab-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// Broadcasts race client unregistration here; the hub must never send on a
// Send channel it has already closed.
func TestBroadcastDuringUnregister(t *testing.T) {
	log := logger.NewIsolatedLogger(t.TempDir() + "/hub.log")
	h := NewHub(nil, log)
	go h.Run()

	docId := uuid.New()
	clients := make([]*Client, 8)
	for i := range clients {
		clients[i] = &Client{Hub: h, UserID: uuid.New(), DocumentID: docId, Send: make(chan []byte, 256)}
		h.register <- clients[i]
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.BroadcastToDocument(docId, []byte(`{"type":"presence_changed"}`))
		}
	}()
	for _, c := range clients {
		h.unregister <- c
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 0
	}, time.Second, 10*time.Millisecond, "emptied rooms are removed")
}

func TestBroadcastReachesEveryLocalClient(t *testing.T) {
	log := logger.NewIsolatedLogger(t.TempDir() + "/hub.log")
	h := NewHub(nil, log)
	go h.Run()

	docId := uuid.New()
	a := &Client{Hub: h, UserID: uuid.New(), DocumentID: docId, Send: make(chan []byte, 4)}
	b := &Client{Hub: h, UserID: uuid.New(), DocumentID: docId, Send: make(chan []byte, 4)}
	other := &Client{Hub: h, UserID: uuid.New(), DocumentID: uuid.New(), Send: make(chan []byte, 4)}
	for _, c := range []*Client{a, b, other} {
		h.register <- c
	}

	h.BroadcastToDocument(docId, []byte("hello"))

	assert.Equal(t, "hello", string(<-a.Send))
	assert.Equal(t, "hello", string(<-b.Send))
	assert.Empty(t, other.Send, "other documents do not receive the frame")
}
