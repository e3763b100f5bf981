package feed

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSHandler upgrades the request and keeps the subscriber registered until
// it disconnects. Incoming messages are ignored. Cross-origin upgrades are
// refused by the upgrader's default origin check.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response
			return
		}

		// register after the welcome so Broadcast never races this write
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(Event{Type: EventWelcome, Subscribers: hub.Count() + 1, At: time.Now().UTC()}); err != nil {
			_ = ws.Close()
			return
		}
		hub.Add(ws)
		hub.logger.Debug("feed subscriber connected", zap.String("client_ip", c.ClientIP()))

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(ws)
		hub.logger.Debug("feed subscriber disconnected", zap.String("client_ip", c.ClientIP()))
	}
}
