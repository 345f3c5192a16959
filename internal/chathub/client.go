package chathub

import "chatrelay/backend/internal/models"

// Client is one live transport connection. The ManagerService owns every Client it
// registers; other components only ever see its id.
type Client interface {
	// GetID returns the transport-assigned connection id.
	GetID() string
	// GetUserID returns the authenticated user, or "" for an anonymous connection.
	GetUserID() string
	// SetUserID attaches the identity resolved at connect time.
	SetUserID(string)

	// GetSendChannel returns the channel the hub writes outbound frames to.
	GetSendChannel() chan<- models.OutboundFrame

	// Run starts the read and write pumps.
	Run()
	// Close stops the write pump, which in turn closes the connection.
	Close()
}

// Emitter delivers an outbound event to every connection in a room.
type Emitter interface {
	EmitToRoom(room, event string, data any)
}
