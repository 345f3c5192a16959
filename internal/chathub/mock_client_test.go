package chathub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/models"

	"github.com/stretchr/testify/require"
)

// MockClient is a channel-backed chathub.Client. Close panics if called twice,
// which makes double cleanup visible in tests.
type MockClient struct {
	id     string
	userID string
	send   chan models.OutboundFrame

	mu     sync.Mutex
	runs   int
	closes int
}

func newMockClient(id string) *MockClient {
	return newBufferedMockClient(id, 32)
}

func newBufferedMockClient(id string, size int) *MockClient {
	return &MockClient{
		id:   id,
		send: make(chan models.OutboundFrame, size),
	}
}

func (c *MockClient) GetID() string                               { return c.id }
func (c *MockClient) GetUserID() string                           { return c.userID }
func (c *MockClient) SetUserID(id string)                         { c.userID = id }
func (c *MockClient) GetSendChannel() chan<- models.OutboundFrame { return c.send }

func (c *MockClient) Run() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	close(c.send)
}

func (c *MockClient) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// expectFrame waits for the next frame with the given event, skipping others.
func (c *MockClient) expectFrame(t *testing.T, event string) models.OutboundFrame {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case f, ok := <-c.send:
			require.True(t, ok, "client %s closed while waiting for %q", c.id, event)
			if f.Event == event {
				return f
			}
		case <-timeout:
			t.Fatalf("client %s: no %q frame received", c.id, event)
		}
	}
}

// expectNoFrame asserts that no frame with the given event arrives within d.
func (c *MockClient) expectNoFrame(t *testing.T, event string, d time.Duration) {
	t.Helper()
	timeout := time.After(d)
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return
			}
			if f.Event == event {
				t.Fatalf("client %s: unexpected %q frame: %+v", c.id, event, f.Data)
			}
		case <-timeout:
			return
		}
	}
}

// fakeResolver maps fixed tokens to users.
type fakeResolver map[string]string

func (r fakeResolver) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", auth.ErrMissingCredential
	}
	if userID, ok := r[token]; ok {
		return userID, nil
	}
	return "", auth.ErrInvalidCredential
}
