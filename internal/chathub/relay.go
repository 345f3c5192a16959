package chathub

import (
	"context"
	"errors"
	"strings"

	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrMalformedMessage = errors.New("message requires channelId, senderId and text")
	ErrSenderMismatch   = errors.New("senderId does not match the authenticated user")
)

// MessageRelay validates, persists and broadcasts chat messages.
type MessageRelay struct {
	Storage storage.Storage
	emitter Emitter
	log     *zap.Logger
}

func NewMessageRelay(s storage.Storage, emitter Emitter, log *zap.Logger) *MessageRelay {
	return &MessageRelay{Storage: s, emitter: emitter, log: log}
}

// Relay persists the payload and fans the stored message out to the channel room.
// On any error nothing is broadcast.
func (r *MessageRelay) Relay(ctx context.Context, payload models.MessagePayload) (*models.MessageEvent, error) {
	channelID := strings.TrimSpace(payload.ChannelID)
	senderID := strings.TrimSpace(payload.SenderID)
	if channelID == "" || senderID == "" || strings.TrimSpace(payload.Text) == "" {
		r.log.Warn("dropping malformed message",
			zap.String("channel_id", channelID), zap.String("sender_id", senderID))
		return nil, ErrMalformedMessage
	}

	msg, err := r.Storage.CreateMessage(ctx, senderID, channelID, payload.Text)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotAMember), errors.Is(err, storage.ErrChannelNotFound):
			r.log.Warn("message rejected by store",
				zap.String("channel_id", channelID), zap.String("sender_id", senderID), zap.Error(err))
		default:
			r.log.Error("failed to persist message",
				zap.String("channel_id", channelID), zap.String("sender_id", senderID), zap.Error(err))
		}
		return nil, err
	}

	event := msg.Event()
	r.emitter.EmitToRoom(ChannelRoom(channelID), models.EventMessage, event)
	return &event, nil
}
