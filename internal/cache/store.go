package cache

import (
	"context"
	"time"
)

// Store represents the shared cache capability injected across the
// application. It is best-effort: callers must treat every failure as a
// miss and fall back to the database, never as an authorization answer.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every key starting with prefix. Used by the
	// invalidation coordinator after permission mutations.
	DeleteByPrefix(ctx context.Context, prefix string) error
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
