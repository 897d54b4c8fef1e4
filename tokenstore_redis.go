package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisTokenMetadata struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// RedisTokenStore keeps refresh tokens as keys that expire with the token.
type RedisTokenStore struct {
	redis *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{redis: client}
}

func refreshKey(token string) string {
	return fmt.Sprintf("refresh:%s", token)
}

func (r *RedisTokenStore) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(redisTokenMetadata{UserID: t.UserID, ExpiresAt: t.ExpiresAt, CreatedAt: t.CreatedAt})
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, refreshKey(t.Token), data, ttl).Err()
}

func (r *RedisTokenStore) FindRefreshToken(ctx context.Context, userID, token string) (*RefreshToken, error) {
	val, err := r.redis.Get(ctx, refreshKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta redisTokenMetadata
	if err := json.Unmarshal(val, &meta); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	if meta.UserID != userID {
		return nil, ErrNotFound
	}
	return &RefreshToken{UserID: meta.UserID, Token: token, ExpiresAt: meta.ExpiresAt, CreatedAt: meta.CreatedAt}, nil
}

func (r *RedisTokenStore) DeleteRefreshToken(ctx context.Context, token string) error {
	return r.redis.Del(ctx, refreshKey(token)).Err()
}
