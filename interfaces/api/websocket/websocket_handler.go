package websocket

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	wshub "vidstream/infrastructure/websocket"
	"vidstream/pkg/logger"
)

type WebSocketHandler struct {
	hub *wshub.Hub
}

func NewWebSocketHandler(hub *wshub.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// WebSocketUpgrade rejects plain HTTP requests and malformed video ids
func (h *WebSocketHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if id := c.Params("videoId"); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid video ID")
		}
	}
	return c.Next()
}

// HandleProgress streams progress of one video, or of every video when the
// route has no videoId
func (h *WebSocketHandler) HandleProgress(c *websocket.Conn) {
	room := c.Params("videoId")
	h.hub.Register(c, room)
	defer h.hub.Unregister(c)

	logger.Debug("WebSocket progress listener attached", "video_id", room)

	// clients only listen; reading detects the close
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
