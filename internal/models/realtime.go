package models

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinChannel  = "joinChannel"
	EventLeaveChannel = "leaveChannel"
	EventMessage      = "message"
	EventHistory      = "history"
)

// Outbound event names.
const (
	EventAck           = "ack"
	EventMessageError  = "message:error"
	EventStatusChanged = "user:statusChanged"
)

// InboundFrame is what a client writes on the socket.
type InboundFrame struct {
	Event string          `json:"event"`
	Ack   *uint64         `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is what the gateway writes back.
type OutboundFrame struct {
	Event string  `json:"event"`
	Ack   *uint64 `json:"ack,omitempty"`
	Data  any     `json:"data,omitempty"`
}

// MessagePayload is the body of an inbound "message" event.
// AckID is optional; when set the sender is told about relay failures.
type MessagePayload struct {
	ChannelID string `json:"channelId"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	AckID     string `json:"ackId,omitempty"`
}

// HistoryRequest asks for the backlog of the channel the connection has joined.
type HistoryRequest struct {
	ChannelID string `json:"channelId"`
	Limit     int    `json:"limit,omitempty"`
}

// AuthorSummary is the public view of a message author.
type AuthorSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Status      Status `json:"status"`
}

// MessageEvent is broadcast to a channel room after a message is persisted.
type MessageEvent struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	ChannelID string        `json:"channelId"`
	AuthorID  string        `json:"authorId"`
	Author    AuthorSummary `json:"author"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// StatusChangedEvent tells a friend that a user came online or went offline.
type StatusChangedEvent struct {
	UserID string `json:"userId"`
	Status Status `json:"status"`
}

// MessageErrorEvent reports a rejected message back to its sender.
type MessageErrorEvent struct {
	AckID string `json:"ackId"`
	Error string `json:"error"`
}
