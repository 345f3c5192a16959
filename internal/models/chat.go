package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Server is a guild that owns channels and members.
type Server struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"type:text;not null"`
	OwnerID   string `gorm:"type:text;not null;index"`
	CreatedAt time.Time
}

// Member links a user to a server. Roles holds role names granted on that server.
type Member struct {
	ID       uint           `gorm:"primaryKey"`
	ServerID string         `gorm:"type:text;not null;uniqueIndex:idx_member_server_user"`
	UserID   string         `gorm:"type:text;not null;uniqueIndex:idx_member_server_user"`
	Roles    pq.StringArray `gorm:"type:text[]"`
	JoinedAt time.Time      `gorm:"autoCreateTime"`
}

// Channel is a text channel inside a server.
type Channel struct {
	ID        string `gorm:"primaryKey"`
	ServerID  string `gorm:"type:text;not null;index"`
	Name      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// Message is a persisted chat message.
type Message struct {
	ID        string    `gorm:"primaryKey"`
	Content   string    `gorm:"type:text;not null"`
	ChannelID string    `gorm:"type:text;not null;index:idx_channel_created"`
	AuthorID  string    `gorm:"type:text;not null;index"`
	Author    User      `gorm:"foreignKey:AuthorID"`
	CreatedAt time.Time `gorm:"index:idx_channel_created"`
	UpdatedAt time.Time
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Event shapes the persisted message into the broadcast payload.
func (m Message) Event() MessageEvent {
	return MessageEvent{
		ID:        m.ID,
		Content:   m.Content,
		ChannelID: m.ChannelID,
		AuthorID:  m.AuthorID,
		Author:    m.Author.Summary(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "PENDING"
	FriendshipAccepted FriendshipStatus = "ACCEPTED"
)

// Friendship is a directed friend request; once accepted it is symmetric.
type Friendship struct {
	ID         uint             `gorm:"primaryKey"`
	SenderID   string           `gorm:"type:text;not null;index"`
	ReceiverID string           `gorm:"type:text;not null;index"`
	Status     FriendshipStatus `gorm:"type:varchar(16);not null;default:'PENDING'"`
	CreatedAt  time.Time
}

// Other returns the party of the friendship that is not userID.
func (f Friendship) Other(userID string) string {
	if f.SenderID == userID {
		return f.ReceiverID
	}
	return f.SenderID
}
