package chathub_test

import (
	"context"

	"chatrelay/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateMessage(ctx context.Context, senderID, channelID, content string) (*models.Message, error) {
	args := m.Called(ctx, senderID, channelID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) ListRecentMessages(ctx context.Context, userID, channelID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, userID, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) ListAcceptedFriendships(ctx context.Context, userID string) ([]models.Friendship, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Friendship), args.Error(1)
}

func (m *MockStorage) SetUserStatus(ctx context.Context, userID string, status models.Status) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

func (m *MockStorage) GetPresence(ctx context.Context, userID string) (models.Status, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Status), args.Error(1)
}

func (m *MockStorage) ResetPresence(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
