package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "autobidder/internal/infrastructure/websocket"
	"autobidder/pkg/logger"
)

type WebSocketHandler struct {
	feed     *ws.DecisionFeed
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(feed *ws.DecisionFeed, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			// Single-operator dashboard behind its own network boundary.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// HandleFeed upgrades the connection and streams decision events until the
// client goes away. The read loop exists only to observe the close.
func (h *WebSocketHandler) HandleFeed(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade websocket", "error", err)
		return err
	}

	h.feed.Register(conn)
	defer h.feed.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	return nil
}
