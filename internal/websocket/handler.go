package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles websocket requests from the peer.
func ServeWs(hub *Hub, c *websocket.Conn, userID, documentID uuid.UUID, handler MessageHandler) {
	client := &Client{
		Hub:        hub,
		Conn:       c,
		UserID:     userID,
		DocumentID: documentID,
		Send:       make(chan []byte, 256),
		handler:    handler,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
