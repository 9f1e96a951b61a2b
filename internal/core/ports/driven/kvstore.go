package driven

import (
	"context"
	"time"
)

// PoolStats reports connection-pool health for /metrics and /v1/health.
type PoolStats struct {
	TotalConns  int
	IdleConns   int
	StaleConns  uint32
}

// KVStore is the ephemeral key/value backend used for the PII mapping
// store and the query-result cache. Cache errors are expected to degrade
// to a miss, never to fail the caller — see internal/retriever.
type KVStore interface {
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteMany(ctx context.Context, keys []string) (int, error)
	PoolStats() PoolStats
	Ping(ctx context.Context) error
}
