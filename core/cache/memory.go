package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryEntries = 10000

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type counterEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryCache is a bounded in-process LRU. Expired entries are dropped on read.
// Counters are kept outside the LRU so eviction never resets them; expired counters
// are swept on every Incr.
type MemoryCache struct {
	lru *lru.Cache[string, memoryEntry]
	now func() time.Time

	mu       sync.Mutex
	counters map[string]counterEntry
}

func NewMemoryCache(maxEntries int) (*MemoryCache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	c, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{lru: c, now: time.Now, counters: make(map[string]counterEntry)}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, entry)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.lru.Remove(k)
		delete(m.counters, k)
	}
	return nil
}

func (m *MemoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, c := range m.counters {
		if c.expired(now) {
			delete(m.counters, k)
		}
	}

	entry := m.counters[key]
	entry.value++
	entry.expiresAt = time.Time{}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.counters[key] = entry
	return entry.value, nil
}

func (m *MemoryCache) Counters(_ context.Context, keys ...string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]int64, len(keys))
	for i, k := range keys {
		if c, ok := m.counters[k]; ok && !c.expired(now) {
			out[i] = c.value
		}
	}
	return out, nil
}

func (c counterEntry) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}

// CounterLen reports how many live counters are held.
func (m *MemoryCache) CounterLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

func (m *MemoryCache) Purge() {
	m.lru.Purge()
	m.mu.Lock()
	m.counters = make(map[string]counterEntry)
	m.mu.Unlock()
}

func (m *MemoryCache) Close() error {
	m.Purge()
	return nil
}
