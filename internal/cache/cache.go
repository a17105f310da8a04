// Package cache wraps Redis for read-through caching and counters.
// All operations degrade gracefully: a nil or unreachable client turns
// cache calls into no-ops so the API keeps serving from Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bluefin-labs/enterprise-api/internal/metrics"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New("cache_miss")

// NewClient connects to Redis and verifies the connection with a ping.
// On failure it logs a warning and returns nil; callers treat a nil
// client as "no cache".
func NewClient(ctx context.Context, addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		utils.Logger.WithError(err).Warn("Redis unavailable, continuing without cache")
		_ = client.Close()
		return nil
	}
	utils.Logger.Infof("Connected to Redis at %s", addr)
	return client
}

// Manager exposes the cache operations used by the services.
type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// Enabled reports whether a live Redis connection backs this manager.
func (m *Manager) Enabled() bool {
	return m != nil && m.client != nil
}

// Get unmarshals the JSON value at key into dest. Returns ErrCacheMiss
// when the key does not exist or the cache is disabled.
func (m *Manager) Get(ctx context.Context, key string, dest interface{}) error {
	if !m.Enabled() {
		return ErrCacheMiss
	}
	raw, err := m.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheOperation("get", metrics.CacheMiss)
		return ErrCacheMiss
	}
	if err != nil {
		metrics.RecordCacheOperation("get", metrics.CacheError)
		utils.Logger.WithError(err).Warnf("Cache get failed for key %s", key)
		return ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.RecordCacheOperation("get", metrics.CacheError)
		return ErrCacheMiss
	}
	metrics.RecordCacheOperation("get", metrics.CacheHit)
	return nil
}

// Set marshals value as JSON and stores it with the given TTL.
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !m.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		metrics.RecordCacheOperation("set", metrics.CacheError)
		return
	}
	if err := m.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		metrics.RecordCacheOperation("set", metrics.CacheError)
		utils.Logger.WithError(err).Warnf("Cache set failed for key %s", key)
		return
	}
	metrics.RecordCacheOperation("set", metrics.CacheHit)
}

// Delete removes one or more keys.
func (m *Manager) Delete(ctx context.Context, keys ...string) {
	if !m.Enabled() || len(keys) == 0 {
		return
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordCacheOperation("delete", metrics.CacheError)
		utils.Logger.WithError(err).Warn("Cache delete failed")
		return
	}
	metrics.RecordCacheOperation("delete", metrics.CacheHit)
}

// ClearPattern deletes all keys matching a glob pattern via SCAN.
func (m *Manager) ClearPattern(ctx context.Context, pattern string) {
	if !m.Enabled() {
		return
	}
	iter := m.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		metrics.RecordCacheOperation("clear_pattern", metrics.CacheError)
		utils.Logger.WithError(err).Warnf("Cache scan failed for pattern %s", pattern)
		return
	}
	m.Delete(ctx, keys...)
}

// IncrementWithWindow atomically increments a counter and refreshes the
// expiry that bounds the window. Returns the value after increment.
func (m *Manager) IncrementWithWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !m.Enabled() {
		return 0, errors.New("cache_disabled")
	}
	pipe := m.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Ping reports connection health for the detailed health probe.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return errors.New("cache_disabled")
	}
	return m.client.Ping(ctx).Err()
}
