package handler

import (
	"errors"
	"net/http"

	"chatrelay/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetPresence reports the stored status of a user and how many sockets it has here.
func (h *Handler) GetPresence(c *gin.Context) {
	userID := c.Param("id")

	status, err := h.Storage.GetPresence(c.Request.Context(), userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.log.Error("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":      userID,
		"status":      status,
		"connections": h.Hub.Registry.CountFor(userID),
	})
}

// Health reports liveness and how many users are connected.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"onlineUsers": h.Hub.Registry.OnlineUsers(),
	})
}

// Register mounts the gateway routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/healthz", h.Health)
	r.GET("/users/:id/presence", h.GetPresence)
}
