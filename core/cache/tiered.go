package cache

import (
	"context"
	"errors"
	"time"

	"smartschedule/core/logger"
)

// TieredCache reads through a local L1 into a shared L2 and back-fills L1 on L2 hits.
// L2 failures are logged and treated as misses. Counters live in L2 only.
type TieredCache struct {
	l1    Cache
	l2    Cache
	l1TTL time.Duration
}

// NewTieredCache builds a two-level cache. l1TTL caps how long an L2 hit is kept locally.
func NewTieredCache(l1, l2 Cache, l1TTL time.Duration) *TieredCache {
	return &TieredCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := t.l1.Get(ctx, key); err == nil {
		return val, nil
	}

	val, err := t.l2.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.Warn("TieredCache:Get:L2Error", "key", key, "error", err)
		}
		return nil, ErrCacheMiss
	}

	_ = t.l1.Set(ctx, key, val, t.l1TTL)
	return val, nil
}

func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := ttl
	if t.l1TTL > 0 && (l1TTL <= 0 || t.l1TTL < l1TTL) {
		l1TTL = t.l1TTL
	}
	_ = t.l1.Set(ctx, key, value, l1TTL)

	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		logger.Warn("TieredCache:Set:L2Error", "key", key, "error", err)
	}
	return nil
}

func (t *TieredCache) Delete(ctx context.Context, keys ...string) error {
	_ = t.l1.Delete(ctx, keys...)
	return t.l2.Delete(ctx, keys...)
}

func (t *TieredCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return t.l2.Incr(ctx, key, ttl)
}

func (t *TieredCache) Counters(ctx context.Context, keys ...string) ([]int64, error) {
	return t.l2.Counters(ctx, keys...)
}

func (t *TieredCache) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}
