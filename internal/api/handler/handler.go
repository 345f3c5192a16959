package handler

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/storage"

	"go.uber.org/zap"
)

// Handler holds what the HTTP routes need from the gateway.
type Handler struct {
	Hub     *chathub.ManagerService
	Storage storage.Storage
	log     *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, s storage.Storage, log *zap.Logger) *Handler {
	return &Handler{Hub: hub, Storage: s, log: log}
}
