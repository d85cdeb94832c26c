package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshSessionRepository tracks refresh tokens the server still honours.
// Tokens are stored by hash only.
type RefreshSessionRepository interface {
	Register(ctx context.Context, userID, token string, ttl time.Duration) error
	Active(ctx context.Context, userID, token string) (bool, error)
	Revoke(ctx context.Context, userID, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

type redisRefreshSessionRepository struct {
	client *redis.Client
	prefix string
}

// NewRefreshSessionRepository returns a Redis-backed implementation.
func NewRefreshSessionRepository(client *redis.Client, prefix string) RefreshSessionRepository {
	return &redisRefreshSessionRepository{client: client, prefix: prefix}
}

func (r *redisRefreshSessionRepository) tokenKey(hash string) string {
	return r.prefix + ":refresh:" + hash
}

func (r *redisRefreshSessionRepository) userKey(userID string) string {
	return r.prefix + ":refresh-user:" + userID
}

// HashToken is the storage key form of a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *redisRefreshSessionRepository) Register(ctx context.Context, userID, token string, ttl time.Duration) error {
	hash := HashToken(token)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(hash), userID, ttl)
		pipe.SAdd(ctx, r.userKey(userID), hash)
		pipe.Expire(ctx, r.userKey(userID), ttl)
		return nil
	})
	return err
}

func (r *redisRefreshSessionRepository) Active(ctx context.Context, userID, token string) (bool, error) {
	owner, err := r.client.Get(ctx, r.tokenKey(HashToken(token))).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

func (r *redisRefreshSessionRepository) Revoke(ctx context.Context, userID, token string) error {
	hash := HashToken(token)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.tokenKey(hash))
		pipe.SRem(ctx, r.userKey(userID), hash)
		return nil
	})
	return err
}

func (r *redisRefreshSessionRepository) RevokeAll(ctx context.Context, userID string) error {
	hashes, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, r.tokenKey(h))
	}
	keys = append(keys, r.userKey(userID))
	return r.client.Del(ctx, keys...).Err()
}
