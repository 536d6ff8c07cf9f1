package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(8)
	require.NoError(t, err)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// returned slices are copies
	got[0] = 'x'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("v1"), again)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(8)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 30*time.Minute))

	now = now.Add(29 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "same", []byte("value"), time.Minute)
			_, _ = c.Get(ctx, "same")
		}()
	}
	wg.Wait()

	got, err := c.Get(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingCache) Delete(context.Context, ...string) error { return nil }
func (failingCache) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingCache) Counters(context.Context, ...string) ([]int64, error) {
	return nil, errors.New("connection refused")
}
func (failingCache) Close() error { return nil }

func TestTieredCache_BackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1, _ := NewMemoryCache(8)
	l2, _ := NewMemoryCache(8)
	tc := NewTieredCache(l1, l2, time.Minute)

	require.NoError(t, l2.Set(ctx, "shared", []byte("from-l2"), time.Hour))

	got, err := tc.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-l2"), got)

	local, err := l1.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-l2"), local)

	require.NoError(t, tc.Delete(ctx, "shared"))
	_, err = tc.Get(ctx, "shared")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTieredCache_L2FailureIsMiss(t *testing.T) {
	ctx := context.Background()
	l1, _ := NewMemoryCache(8)
	tc := NewTieredCache(l1, failingCache{}, time.Minute)

	_, err := tc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, tc.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := tc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryCache_Counters(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	n, err := c.Incr(ctx, "g:a", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "g:a", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// filling the LRU does not evict counters
	for _, k := range []string{"x", "y", "z"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), 0))
	}
	got, err := c.Counters(ctx, "g:a", "g:missing")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 0}, got)

	// expired counters read as zero and are swept by the next Incr
	now = now.Add(time.Hour)
	got, _ = c.Counters(ctx, "g:a")
	assert.Equal(t, []int64{0}, got)
	_, err = c.Incr(ctx, "g:b", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CounterLen())
}

func TestTieredCache_CountersAreShared(t *testing.T) {
	ctx := context.Background()
	shared, _ := NewMemoryCache(8)
	l1a, _ := NewMemoryCache(8)
	l1b, _ := NewMemoryCache(8)
	a := NewTieredCache(l1a, shared, time.Minute)
	b := NewTieredCache(l1b, shared, time.Minute)

	_, err := a.Incr(ctx, "g:p", time.Hour)
	require.NoError(t, err)

	got, err := b.Counters(ctx, "g:p")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, got)
	assert.Equal(t, 0, l1a.CounterLen())
}
