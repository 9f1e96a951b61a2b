// Package redis adapts go-redis to the driven.KVStore contract used for
// the PII mapping store and the query-result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

var _ driven.KVStore = (*KVStore)(nil)

// KVStore wraps a *redis.Client behind the driven.KVStore contract.
type KVStore struct {
	client *redis.Client
}

// New wraps an existing go-redis client.
func New(client *redis.Client) *KVStore {
	return &KVStore{client: client}
}

// SetEx writes value under key with a TTL.
func (s *KVStore) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	if err := s.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: setex %s: %w", key, err)
	}
	return nil
}

// Get reads key, reporting ok=false on a cache miss rather than an error.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, true, nil
}

// Del removes key. Deleting an absent key is not an error.
func (s *KVStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

// Keys scans for keys matching pattern. Used for the doc:<docHash>*
// invalidation sweep; SCAN is used rather than KEYS to avoid blocking the
// server on a large keyspace.
func (s *KVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", pattern, err)
	}
	return keys, nil
}

// DeleteMany removes multiple keys in one round trip, returning how many
// existed.
func (s *KVStore) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: del many: %w", err)
	}
	return int(n), nil
}

// PoolStats reports connection-pool health for /metrics and /v1/health.
func (s *KVStore) PoolStats() driven.PoolStats {
	stats := s.client.PoolStats()
	return driven.PoolStats{
		TotalConns: int(stats.TotalConns),
		IdleConns:  int(stats.IdleConns),
		StaleConns: stats.StaleConns,
	}
}

// Ping checks Redis reachability.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
