package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key layout: the session record lives under its token, with an id→token
// pointer (for rotation and deletes by ID) and a per-user set of IDs (for
// DeleteByUserID). All keys expire with the session.
const (
	redisTokenPrefix = "sess:token:"
	redisIDPrefix    = "sess:id:"
	redisUserPrefix  = "sess:user:"
)

// redisSession is the serialized form of a Session.
type redisSession struct {
	ID           string         `json:"id"`
	Token        string         `json:"token"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Values       map[string]any `json:"values,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// RedisStore persists sessions in Redis with per-session TTLs.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	return s.write(ctx, sess, "")
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, redisTokenPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}

	sess := &Session{
		ID:           rs.ID,
		Token:        rs.Token,
		UserID:       rs.UserID,
		IP:           rs.IP,
		UserAgent:    rs.UserAgent,
		Values:       rs.Values,
		CreatedAt:    rs.CreatedAt,
		LastActiveAt: rs.LastActiveAt,
		ExpiresAt:    rs.ExpiresAt,
	}
	if sess.Values == nil {
		sess.Values = make(map[string]any)
	}

	if sess.IsExpired() {
		_ = s.Delete(ctx, sess.ID)
		return nil, ErrExpired
	}

	return sess, nil
}

func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	// The token may have been rotated; look up the old one via the ID
	// pointer so the stale record is removed.
	oldToken, err := s.client.Get(ctx, redisIDPrefix+sess.ID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	return s.write(ctx, sess, oldToken)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	token, err := s.client.Get(ctx, redisIDPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisTokenPrefix+token, redisIDPrefix+id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, redisUserPrefix+userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, redisUserPrefix+userID).Err()
}

func (s *RedisStore) Touch(ctx context.Context, id string, lastActiveAt time.Time) error {
	token, err := s.client.Get(ctx, redisIDPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}

	sess, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	sess.LastActiveAt = lastActiveAt
	return s.write(ctx, sess, "")
}

// write persists the session under its current token, removing staleToken
// when a rotation left an old record behind.
func (s *RedisStore) write(ctx context.Context, sess *Session, staleToken string) error {
	data, err := json.Marshal(redisSession{
		ID:           sess.ID,
		Token:        sess.Token,
		UserID:       sess.UserID,
		IP:           sess.IP,
		UserAgent:    sess.UserAgent,
		Values:       sess.Values,
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
		ExpiresAt:    sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}

	pipe := s.client.TxPipeline()
	if staleToken != "" && staleToken != sess.Token {
		pipe.Del(ctx, redisTokenPrefix+staleToken)
	}
	pipe.Set(ctx, redisTokenPrefix+sess.Token, data, ttl)
	pipe.Set(ctx, redisIDPrefix+sess.ID, sess.Token, ttl)
	if sess.UserID != nil {
		userKey := redisUserPrefix + sess.UserID.String()
		pipe.SAdd(ctx, userKey, sess.ID)
		pipe.Expire(ctx, userKey, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

var _ Store = (*RedisStore)(nil)
