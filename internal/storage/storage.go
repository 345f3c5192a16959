package storage

import (
	"context"
	stderrors "errors"
	"time"

	"chatrelay/backend/internal/models"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrChannelNotFound = stderrors.New("channel not found")
	ErrNotAMember      = stderrors.New("sender is not a member of the channel's server")
	ErrUserNotFound    = stderrors.New("user not found")
)

// presenceTTL bounds how long a stale mirror key survives a crashed process.
const presenceTTL = 24 * time.Hour

// Storage is everything the gateway needs from the persistence layer.
type Storage interface {
	CreateMessage(ctx context.Context, senderID, channelID, content string) (*models.Message, error)
	ListRecentMessages(ctx context.Context, userID, channelID string, limit int) ([]models.Message, error)

	ListAcceptedFriendships(ctx context.Context, userID string) ([]models.Friendship, error)

	SetUserStatus(ctx context.Context, userID string, status models.Status) error
	GetPresence(ctx context.Context, userID string) (models.Status, error)
	ResetPresence(ctx context.Context) (int64, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   *zap.Logger
}

// NewStorageService Constructor. rdb may be nil, in which case presence is read from the DB only.
func NewStorageService(db *gorm.DB, rdb *redis.Client, log *zap.Logger) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		log:   log,
	}
}

// AutoMigrate creates or updates every table the gateway touches.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Server{},
		&models.Member{},
		&models.Channel{},
		&models.Message{},
		&models.Friendship{},
	)
}

func presenceKey(userID string) string { return "presence:" + userID }

// CreateMessage persists a message after checking that the channel exists and that the
// sender belongs to the channel's server. The returned message has Author preloaded.
func (s *Service) CreateMessage(ctx context.Context, senderID, channelID, content string) (*models.Message, error) {
	db := s.DB.WithContext(ctx)
	if err := s.checkMembership(db, senderID, channelID); err != nil {
		return nil, err
	}

	msg := models.Message{
		Content:   content,
		ChannelID: channelID,
		AuthorID:  senderID,
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, errors.Wrapf(err, "create message in %s", channelID)
	}

	if err := db.Preload("Author").First(&msg, "id = ?", msg.ID).Error; err != nil {
		return nil, errors.Wrapf(err, "reload message %s", msg.ID)
	}
	return &msg, nil
}

// checkMembership returns ErrChannelNotFound or ErrNotAMember unless userID belongs to
// the server that owns channelID.
func (s *Service) checkMembership(db *gorm.DB, userID, channelID string) error {
	var channel models.Channel
	if err := db.Where("id = ?", channelID).First(&channel).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return errors.Wrapf(err, "load channel %s", channelID)
	}

	var members int64
	if err := db.Model(&models.Member{}).
		Where("server_id = ? AND user_id = ?", channel.ServerID, userID).
		Count(&members).Error; err != nil {
		return errors.Wrapf(err, "check membership of %s", userID)
	}
	if members == 0 {
		return ErrNotAMember
	}
	return nil
}

// ListRecentMessages returns up to limit messages of a channel, oldest first. The
// requester must be a member of the channel's server.
func (s *Service) ListRecentMessages(ctx context.Context, userID, channelID string, limit int) ([]models.Message, error) {
	if err := s.checkMembership(s.DB.WithContext(ctx), userID, channelID); err != nil {
		return nil, err
	}

	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Preload("Author").
		Where("channel_id = ?", channelID).
		Order("created_at desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list messages of %s", channelID)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListAcceptedFriendships returns every accepted friendship userID takes part in.
func (s *Service) ListAcceptedFriendships(ctx context.Context, userID string) ([]models.Friendship, error) {
	var friendships []models.Friendship
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.FriendshipAccepted).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Find(&friendships).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list friendships of %s", userID)
	}
	return friendships, nil
}

// SetUserStatus writes the status to the user row and mirrors it into Redis.
func (s *Service) SetUserStatus(ctx context.Context, userID string, status models.Status) error {
	res := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("status", status)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "set status of %s", userID)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	if s.Redis == nil {
		return nil
	}
	var err error
	if status == models.StatusOnline {
		err = s.Redis.Set(ctx, presenceKey(userID), string(status), presenceTTL).Err()
	} else {
		err = s.Redis.Del(ctx, presenceKey(userID)).Err()
	}
	if err != nil {
		// The row is the source of truth; a stale mirror only affects reads.
		s.log.Warn("presence mirror update failed", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// GetPresence reads the Redis mirror first and falls back to the user row.
func (s *Service) GetPresence(ctx context.Context, userID string) (models.Status, error) {
	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, presenceKey(userID)).Result()
		switch {
		case err == nil:
			return models.Status(val), nil
		case !stderrors.Is(err, redis.Nil):
			s.log.Warn("presence mirror read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	var user models.User
	err := s.DB.WithContext(ctx).Select("id", "status").Where("id = ?", userID).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "load user %s", userID)
	}
	return user.Status, nil
}

// ResetPresence marks every ONLINE user OFFLINE and clears the Redis mirror. The in-memory
// registry starts empty, so anything still ONLINE at boot was left behind by a previous
// process. A mirror that cannot be cleared is an error: GetPresence would keep serving it.
func (s *Service) ResetPresence(ctx context.Context) (int64, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("status = ?", models.StatusOnline).
		Pluck("id", &ids).Error; err != nil {
		return 0, errors.Wrap(err, "list online users")
	}
	var affected int64
	if len(ids) > 0 {
		res := s.DB.WithContext(ctx).
			Model(&models.User{}).
			Where("id IN ?", ids).
			Update("status", models.StatusOffline)
		if res.Error != nil {
			return 0, errors.Wrap(res.Error, "reset presence")
		}
		affected = res.RowsAffected
	}

	if err := s.clearPresenceMirror(ctx); err != nil {
		return affected, err
	}
	return affected, nil
}

// clearPresenceMirror drops every presence key, including ones left behind for rows that
// are already OFFLINE. Without a Redis client there is nothing to clear.
func (s *Service) clearPresenceMirror(ctx context.Context) error {
	if s.Redis == nil {
		return nil
	}
	iter := s.Redis.Scan(ctx, 0, presenceKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scan presence mirror")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "clear presence mirror")
	}
	return nil
}
