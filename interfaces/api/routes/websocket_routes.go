package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	wshub "vidstream/infrastructure/websocket"
	websocketHandler "vidstream/interfaces/api/websocket"
)

func SetupWebSocketRoutes(app *fiber.App, hub *wshub.Hub) {
	wsHandler := websocketHandler.NewWebSocketHandler(hub)

	app.Get("/ws/progress", wsHandler.WebSocketUpgrade, websocket.New(wsHandler.HandleProgress))
	app.Get("/ws/progress/:videoId", wsHandler.WebSocketUpgrade, websocket.New(wsHandler.HandleProgress))
}
