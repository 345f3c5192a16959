package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the derived presence of a user.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// Valid reports whether s is one of the known presence values.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// User is the persisted account record. Status is only written by the presence engine.
type User struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	DisplayName string    `gorm:"type:text;not null" json:"displayName"`
	AvatarURL   string    `gorm:"type:text" json:"avatarUrl"`
	Status      Status    `gorm:"type:varchar(16);default:'OFFLINE';index" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the user if ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = StatusOffline
	}
	return
}

// Summary returns the denormalized author block attached to broadcast messages.
func (u User) Summary() AuthorSummary {
	return AuthorSummary{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Status:      u.Status,
	}
}
