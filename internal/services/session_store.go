package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/utils"
)

// SessionStore keeps admin sessions keyed by opaque token. Get returns
// ErrUnauthorized for unknown or expired tokens.
type SessionStore interface {
	Create(ctx context.Context, identity AdminIdentity) (string, error)
	Get(ctx context.Context, token string) (*AdminIdentity, error)
	Update(ctx context.Context, token string, identity AdminIdentity) error
	Delete(ctx context.Context, token string) error
}

// DBSessionStore persists sessions in the admin_sessions table.
type DBSessionStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewDBSessionStore constructs DBSessionStore.
func NewDBSessionStore(db *gorm.DB, ttl time.Duration) *DBSessionStore {
	return &DBSessionStore{db: db, ttl: ttl, now: time.Now}
}

func (s *DBSessionStore) Create(ctx context.Context, identity AdminIdentity) (string, error) {
	token, err := utils.NewSessionToken()
	if err != nil {
		return "", err
	}

	session := models.AdminSession{
		Token:       token,
		AdminID:     identity.AdminID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", storeError(err)
	}

	// expired rows are swept opportunistically on login
	s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.AdminSession{})

	return token, nil
}

func (s *DBSessionStore) Get(ctx context.Context, token string) (*AdminIdentity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	var session models.AdminSession
	if err := s.db.WithContext(ctx).
		First(&session, "token = ? AND expires_at > ?", token, s.now()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storeError(err)
	}

	return &AdminIdentity{
		AdminID:     session.AdminID,
		Username:    session.Username,
		DisplayName: session.DisplayName,
	}, nil
}

func (s *DBSessionStore) Update(ctx context.Context, token string, identity AdminIdentity) error {
	res := s.db.WithContext(ctx).Model(&models.AdminSession{}).
		Where("token = ? AND expires_at > ?", token, s.now()).
		Updates(map[string]interface{}{
			"username":     identity.Username,
			"display_name": identity.DisplayName,
		})
	if res.Error != nil {
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnauthorized
	}
	return nil
}

func (s *DBSessionStore) Delete(ctx context.Context, token string) error {
	return storeError(s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.AdminSession{}).Error)
}

const adminSessionPrefix = "admin_session:"

// RedisSessionStore keeps sessions as JSON values with a TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore constructs RedisSessionStore.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return adminSessionPrefix + token
}

func (s *RedisSessionStore) Create(ctx context.Context, identity AdminIdentity) (string, error) {
	token, err := utils.NewSessionToken()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(token), payload, s.ttl).Err(); err != nil {
		return "", storeError(err)
	}
	return token, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*AdminIdentity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthorized
		}
		return nil, storeError(err)
	}

	var identity AdminIdentity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, ErrUnauthorized
	}
	return &identity, nil
}

// Update rewrites a live session and keeps its remaining TTL.
func (s *RedisSessionStore) Update(ctx context.Context, token string, identity AdminIdentity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	err = s.client.SetArgs(ctx, sessionKey(token), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrUnauthorized
	}
	return storeError(err)
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return storeError(s.client.Del(ctx, sessionKey(token)).Err())
}
