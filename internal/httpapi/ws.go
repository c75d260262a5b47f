package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sandwichops/relay/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The front proxy enforces origin; the API trusts it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection and parks it in the hub. The push
// channel is one-way; inbound frames are read only so control frames get
// processed.
func handleWS(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}
		client := hub.Register(userID(c), conn)
		if client == nil {
			return
		}
		defer hub.Unregister(client)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
