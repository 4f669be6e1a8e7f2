package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces cached tokens; the OAuth client id is appended.
const RedisKeyPrefix = "catalog:oauth:token:"

// RedisStore shares tokens across client instances via Redis.
type RedisStore struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		now:   time.Now,
	}
}

// Key returns the Redis key used for a client id.
func (s *RedisStore) Key(clientID string) string {
	return RedisKeyPrefix + clientID
}

// Load reads and decodes the token stored under key.
func (s *RedisStore) Load(ctx context.Context, key string) (*Token, error) {
	data, err := s.redis.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token from redis: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token from redis: %w", err)
	}
	return &tok, nil
}

// Save writes token with a TTL equal to its remaining lifetime, so Redis
// expires it on its own. Already expired tokens are not written.
func (s *RedisStore) Save(ctx context.Context, key string, token *Token) error {
	ttl := token.TTL(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := s.redis.Set(ctx, s.Key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("store token in redis: %w", err)
	}
	return nil
}

// Delete removes the token stored under key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.Key(key)).Err(); err != nil {
		return fmt.Errorf("delete token from redis: %w", err)
	}
	return nil
}
