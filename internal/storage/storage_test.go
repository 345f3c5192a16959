package storage

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPresenceKey(t *testing.T) {
	assert.Equal(t, "presence:user_A", presenceKey("user_A"))
}

func TestClearPresenceMirror_NoRedis(t *testing.T) {
	s := NewStorageService(nil, nil, zap.NewNop())
	assert.NoError(t, s.clearPresenceMirror(context.Background()))
}

func TestClearPresenceMirror_UnreachableRedisFails(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := NewStorageService(nil, rdb, zap.NewNop())
	err := s.clearPresenceMirror(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "presence mirror")
}
