package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/analfistt/ArbiWeb/internal/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser dashboard is served from another origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Subscribe handles GET /ws: it upgrades the connection, verifies the bearer
// credential, and hands the connection to the hub. Unauthenticated
// connections are closed immediately with an unauthorized close code.
func (h *APIHandler) Subscribe(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cred, err := live.ParseCredential(bearerToken(c), h.jwtSecret)
	if err != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(live.CloseUnauthorized, "unauthorized"),
			time.Now().Add(time.Second))
		ws.Close()
		return
	}

	client := live.NewClient(cred, ws, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.hub)
}

// bearerToken extracts the credential from the Authorization header or,
// for browser websocket clients that cannot set headers, the query string.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}
