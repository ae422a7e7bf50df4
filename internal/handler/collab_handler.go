package handler

import (
	"os"

	"realtime-collab-be/internal/pkg/logger"
	"realtime-collab-be/internal/service"
	internalWS "realtime-collab-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CollabHandler owns the websocket entry point for editing sessions.
type CollabHandler struct {
	collabService service.ICollabService
	hub           *internalWS.Hub
	logger        logger.ILogger
}

func NewCollabHandler(collabService service.ICollabService, hub *internalWS.Hub, log logger.ILogger) *CollabHandler {
	return &CollabHandler{
		collabService: collabService,
		hub:           hub,
		logger:        log,
	}
}

func (h *CollabHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/collab/v1/ws/:documentId", h.ServeWs)
}

// ServeWs authenticates the handshake and hands the connection to the
// document room.
func (h *CollabHandler) ServeWs(c *fiber.Ctx) error {
	// Token source priority: query param (browser standard), then
	// Authorization header (tooling)
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("CollabHandler", "Invalid Token in WS Handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	documentID, err := uuid.Parse(c.Params("documentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid document ID"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("CollabHandler", "Starting WebSocket session", map[string]interface{}{
				"user_id": userID, "document_id": documentID,
			})
			internalWS.ServeWs(h.hub, conn, userID, documentID, h.collabService)
			h.logger.Info("CollabHandler", "WebSocket session ended", map[string]interface{}{
				"user_id": userID, "document_id": documentID,
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}
