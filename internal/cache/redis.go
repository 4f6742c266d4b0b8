package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/labliq/internal/logging"
	"github.com/JonMunkholm/labliq/internal/store"
)

// KeyPrefix namespaces analysis keys in Redis.
const KeyPrefix = "labliq:analysis:"

// Redis caches analyses as JSON values shared across server instances.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to the Redis server at url (redis:// or rediss://) and
// verifies the connection with PING.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisClient(rdb, ttl), nil
}

// NewRedisClient wraps an existing client. The caller has already checked
// that it is reachable.
func NewRedisClient(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return KeyPrefix + id
}

func (r *Redis) Get(ctx context.Context, id string) (*store.Analysis, bool) {
	data, err := r.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.FromContext(ctx).Warn("cache get failed", "id", id, "error", err)
		return nil, false
	}

	var a store.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		logging.FromContext(ctx).Warn("cache entry corrupt", "id", id, "error", err)
		r.Delete(ctx, id)
		return nil, false
	}
	return &a, true
}

func (r *Redis) Set(ctx context.Context, a *store.Analysis) {
	if a == nil || a.ID == "" {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		logging.FromContext(ctx).Warn("cache encode failed", "id", a.ID, "error", err)
		return
	}
	if err := r.rdb.Set(ctx, key(a.ID), data, r.ttl).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache set failed", "id", a.ID, "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, id string) {
	if err := r.rdb.Del(ctx, key(id)).Err(); err != nil {
		logging.FromContext(ctx).Warn("cache delete failed", "id", id, "error", err)
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
