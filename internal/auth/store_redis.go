package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"givingchain/pkg/platform/sentinel"
)

const sessionKeyPrefix = "gc:session:"

// RedisSessionStore persists sessions with a TTL matching their expiry, so
// abandoned logins evict themselves.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

type storedSession struct {
	DID       string    `json:"did"`
	Username  string    `json:"username"`
	KeySeed   string    `json:"keySeed"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *RedisSessionStore) Create(ctx context.Context, session *Session) error {
	encoded, err := json.Marshal(storedSession{
		DID:       session.DID,
		Username:  session.Username,
		KeySeed:   base64.StdEncoding.EncodeToString(session.KeySeed),
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("session %s already expired", session.ID)
		}
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %v: %w", err, sentinel.ErrUnavailable)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get session: %v: %w", err, sentinel.ErrUnavailable)
	}

	var ss storedSession
	if err := json.Unmarshal([]byte(raw), &ss); err != nil {
		return nil, fmt.Errorf("decode session %s: %v: %w", id, err, sentinel.ErrUnavailable)
	}
	seed, err := base64.StdEncoding.DecodeString(ss.KeySeed)
	if err != nil {
		return nil, fmt.Errorf("decode session seed %s: %v: %w", id, err, sentinel.ErrUnavailable)
	}
	return &Session{
		ID:        id,
		DID:       ss.DID,
		Username:  ss.Username,
		KeySeed:   seed,
		CreatedAt: ss.CreatedAt,
		ExpiresAt: ss.ExpiresAt,
	}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del session: %v: %w", err, sentinel.ErrUnavailable)
	}
	return nil
}
