package models_test

import (
	"reflect"
	"testing"
	"time"

	"chatrelay/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	user := &models.User{DisplayName: "alice"}

	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	// Act - GORM would call this automatically
	err := user.BeforeCreate(nil)

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
	assert.Equal(t, models.StatusOffline, user.Status, "new users start OFFLINE")
}

// TestUserBeforeCreate_PreservesExistingFields verifies that the hook doesn't overwrite ID or Status.
func TestUserBeforeCreate_PreservesExistingFields(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID, DisplayName: "bob", Status: models.StatusOnline}

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID)
	assert.Equal(t, models.StatusOnline, user.Status)
}

func TestMessageBeforeCreate_GeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		msg := &models.Message{Content: "hi", ChannelID: "general", AuthorID: "u1"}
		assert.NoError(t, msg.BeforeCreate(nil))
		assert.NotContains(t, seen, msg.ID)
		seen[msg.ID] = true
	}
}

// TestMessageEvent verifies the broadcast payload carries the author summary.
func TestMessageEvent(t *testing.T) {
	now := time.Now()
	msg := models.Message{
		ID:        "m1",
		Content:   "hello",
		ChannelID: "general",
		AuthorID:  "u1",
		Author:    models.User{ID: "u1", DisplayName: "alice", AvatarURL: "a.png", Status: models.StatusOnline},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ev := msg.Event()

	assert.Equal(t, "m1", ev.ID)
	assert.Equal(t, "general", ev.ChannelID)
	assert.Equal(t, "u1", ev.AuthorID)
	assert.Equal(t, models.AuthorSummary{ID: "u1", DisplayName: "alice", AvatarURL: "a.png", Status: models.StatusOnline}, ev.Author)
	assert.Equal(t, now, ev.CreatedAt)
}

func TestFriendshipOther(t *testing.T) {
	f := models.Friendship{SenderID: "a", ReceiverID: "b", Status: models.FriendshipAccepted}

	assert.Equal(t, "b", f.Other("a"))
	assert.Equal(t, "a", f.Other("b"))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, models.StatusOnline.Valid())
	assert.True(t, models.StatusOffline.Valid())
	assert.False(t, models.Status("AWAY").Valid())
	assert.False(t, models.Status("").Valid())
}

// TestModelStructTags catches accidental tag removal during refactoring.
func TestModelStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})
	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
	assert.Equal(t, "id", idField.Tag.Get("json"))

	memberType := reflect.TypeOf(models.Member{})
	rolesField, found := memberType.FieldByName("Roles")
	assert.True(t, found)
	assert.Contains(t, rolesField.Tag.Get("gorm"), "type:text[]", "Roles should use PostgreSQL array type")

	msgType := reflect.TypeOf(models.Message{})
	authorField, found := msgType.FieldByName("Author")
	assert.True(t, found)
	assert.Contains(t, authorField.Tag.Get("gorm"), "foreignKey:AuthorID")
}
