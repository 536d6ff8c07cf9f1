package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Cache is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically adds one to the counter at key and returns the new value.
	// ttl, when positive, is reset on every increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Counters reads several counters at once. Absent or expired counters read as zero.
	Counters(ctx context.Context, keys ...string) ([]int64, error)
	Close() error
}
