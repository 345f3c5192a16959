package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatrelay/backend/internal/api/handler"
	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
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
	return m.Called(ctx, userID, status).Error(0)
}

func (m *MockStorage) GetPresence(ctx context.Context, userID string) (models.Status, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Status), args.Error(1)
}

func (m *MockStorage) ResetPresence(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func setupRouter(t *testing.T, s *MockStorage) (*gin.Engine, *auth.JWTResolver) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := auth.NewJWTResolver("test-secret", "chatrelay")
	hub := chathub.NewManagerService(s, resolver, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	r := gin.New()
	handler.NewHandler(hub, s, zap.NewNop()).Register(r)
	return r, resolver
}

func TestGetPresence(t *testing.T) {
	tests := []struct {
		name       string
		status     models.Status
		err        error
		wantCode   int
		wantStatus string
	}{
		{"online", models.StatusOnline, nil, http.StatusOK, "ONLINE"},
		{"unknown user", "", storage.ErrUserNotFound, http.StatusNotFound, ""},
		{"store failure", "", errors.New("db down"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockStorage)
			s.On("GetPresence", mock.Anything, "user_A").Return(tt.status, tt.err)
			r, _ := setupRouter(t, s)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/users/user_A/presence", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantStatus != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantStatus, body["status"])
				assert.Equal(t, "user_A", body["userId"])
				assert.EqualValues(t, 0, body["connections"])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t, new(MockStorage))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

type wireFrame struct {
	Event string          `json:"event"`
	Ack   *uint64         `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func TestWebSocket_JoinAndRelay(t *testing.T) {
	s := new(MockStorage)
	s.On("SetUserStatus", mock.Anything, "user_U", mock.Anything).Return(nil).Maybe()
	s.On("ListAcceptedFriendships", mock.Anything, "user_U").Return([]models.Friendship{}, nil).Maybe()

	now := time.Now().UTC().Truncate(time.Second)
	s.On("CreateMessage", mock.Anything, "user_U", "general", "hi").Return(&models.Message{
		ID:        "m1",
		Content:   "hi",
		ChannelID: "general",
		AuthorID:  "user_U",
		Author:    models.User{ID: "user_U", DisplayName: "U", Status: models.StatusOnline},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil)

	r, resolver := setupRouter(t, s)
	srv := httptest.NewServer(r)
	defer srv.Close()

	token, err := resolver.Issue("user_U", time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "joinChannel", "ack": 1, "data": "general"}))
	ack := readFrame(t, conn, models.EventAck)
	require.NotNil(t, ack.Ack)
	assert.EqualValues(t, 1, *ack.Ack)
	assert.JSONEq(t, "true", string(ack.Data))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "message",
		"data":  map[string]string{"channelId": "general", "text": "hi"},
	}))

	msg := readFrame(t, conn, models.EventMessage)
	var ev models.MessageEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "m1", ev.ID)
	assert.Equal(t, "user_U", ev.AuthorID)
	assert.Equal(t, "U", ev.Author.DisplayName)
	assert.True(t, now.Equal(ev.CreatedAt))
}

func TestWebSocket_AnonymousCannotJoin(t *testing.T) {
	r, _ := setupRouter(t, new(MockStorage))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer not-a-token"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err, "an invalid credential does not fail the upgrade")
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "joinChannel", "ack": 7, "data": "general"}))
	ack := readFrame(t, conn, models.EventAck)
	assert.JSONEq(t, "false", string(ack.Data))
}
