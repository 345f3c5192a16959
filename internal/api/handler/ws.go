package handler

import (
	"net/http"
	"strings"

	"chatrelay/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// credentialFrom reads the token from ?token= or an Authorization: Bearer header.
func credentialFrom(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return ""
}

// ServeWebSocket upgrades the request and hands the connection to the hub.
// A missing or invalid credential does not fail the upgrade; the hub keeps the
// connection anonymous.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := credentialFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(uuid.NewString(), conn, h.Hub)
	if err := h.Hub.Connect(c.Request.Context(), client, token); err != nil {
		h.log.Warn("hub refused connection", zap.String("conn_id", client.ID), zap.Error(err))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"))
		conn.Close()
	}
}
