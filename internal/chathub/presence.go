package chathub

import (
	"context"

	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"

	"go.uber.org/zap"
)

// PresenceEngine persists ONLINE/OFFLINE transitions and tells the user's friends.
// Callers invoke Apply only on 0->1 and 1->0 registry transitions.
type PresenceEngine struct {
	Storage storage.Storage
	emitter Emitter
	log     *zap.Logger
}

func NewPresenceEngine(s storage.Storage, emitter Emitter, log *zap.Logger) *PresenceEngine {
	return &PresenceEngine{Storage: s, emitter: emitter, log: log}
}

// Apply stores status for userID, then emits user:statusChanged into the user room of
// every accepted friend. Nothing is emitted when the store write fails.
func (p *PresenceEngine) Apply(ctx context.Context, userID string, status models.Status) error {
	if err := p.Storage.SetUserStatus(ctx, userID, status); err != nil {
		p.log.Error("failed to persist presence",
			zap.String("user_id", userID), zap.String("status", string(status)), zap.Error(err))
		return err
	}

	friendships, err := p.Storage.ListAcceptedFriendships(ctx, userID)
	if err != nil {
		p.log.Error("failed to list friends for presence fanout", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	event := models.StatusChangedEvent{UserID: userID, Status: status}
	notified := make(map[string]struct{}, len(friendships))
	for _, f := range friendships {
		friendID := f.Other(userID)
		if friendID == "" || friendID == userID {
			continue
		}
		if _, dup := notified[friendID]; dup {
			continue
		}
		notified[friendID] = struct{}{}
		p.emitter.EmitToRoom(UserRoom(friendID), models.EventStatusChanged, event)
	}

	p.log.Debug("presence changed",
		zap.String("user_id", userID), zap.String("status", string(status)), zap.Int("friends", len(notified)))
	return nil
}
