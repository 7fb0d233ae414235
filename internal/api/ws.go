package api

import (
	"github.com/DivyPatel-31/coastwatch/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades an authenticated request and hands the connection
// to the hub. Browsers cannot set headers on the upgrade, so the session token
// may also arrive as ?token=.
func WebSocketHandler(hub *realtime.Hub, upgrader *websocket.Upgrader, buffer int) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			_ = c.Error(err)
			c.Abort()
			return
		}
		realtime.NewClient(hub, conn, uid, buffer).Start()
	}
}
