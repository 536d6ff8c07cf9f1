package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"smartschedule/core/cache"
	"smartschedule/modules/availability/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *cache.MemoryCache {
	t.Helper()
	store, err := cache.NewMemoryCache(128)
	require.NoError(t, err)
	return store
}

func TestQueryCacheKey_Canonical(t *testing.T) {
	q := scenarioQuery()
	key := QueryCacheKey(q, 30*time.Minute, "r1")

	reordered := q
	reordered.ParticipantIDs = []string{"A", "B"}
	reordered.Policy.WorkingDays = []time.Weekday{time.Friday, time.Monday, time.Thursday, time.Tuesday, time.Wednesday, time.Monday}
	assert.Equal(t, key, QueryCacheKey(reordered, 30*time.Minute, "r1"))

	otherZone := q
	otherZone.StartDate = q.StartDate.In(time.FixedZone("x", 3600))
	assert.Equal(t, key, QueryCacheKey(otherZone, 30*time.Minute, "r1"), "same instant, same key")

	longer := q
	longer.DurationMinutes = 45
	assert.NotEqual(t, key, QueryCacheKey(longer, 30*time.Minute, "r1"))
	assert.NotEqual(t, key, QueryCacheKey(q, 15*time.Minute, "r1"))
	assert.NotEqual(t, key, QueryCacheKey(q, 30*time.Minute, "r2"))

	full := q
	full.CoverageMode = entity.CoverageFull
	assert.NotEqual(t, key, QueryCacheKey(full, 30*time.Minute, "r1"))

	assert.Equal(t, "q:", key[:2])
}

func TestAvailabilityCache_ParticipantTier(t *testing.T) {
	ctx := context.Background()
	c := NewAvailabilityCache(newMemoryStore(t), time.Minute, nil)
	window := iv(at(0, 0), at(24, 0))
	rangeKey := ParticipantRangeKey(window, workdayPolicy())
	free := []entity.TimeInterval{iv(at(10, 0), at(11, 0)), iv(at(12, 0), at(17, 0))}

	gens := c.Generations(ctx, []string{"A", "B"})
	require.NotNil(t, gens)
	assert.Equal(t, Generations{"A": 0, "B": 0}, gens)

	_, ok := c.GetParticipantFree(ctx, "A", rangeKey, gens["A"], window)
	assert.False(t, ok)

	c.PutParticipantFree(ctx, "A", rangeKey, gens["A"], free)
	got, ok := c.GetParticipantFree(ctx, "A", rangeKey, gens["A"], window)
	require.True(t, ok)
	assert.Equal(t, free, got)

	_, ok = c.GetParticipantFree(ctx, "B", rangeKey, gens["B"], window)
	assert.False(t, ok)

	gen, err := c.InvalidateParticipant(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	gens = c.Generations(ctx, []string{"A", "B"})
	assert.Equal(t, Generations{"A": 1, "B": 0}, gens)
	_, ok = c.GetParticipantFree(ctx, "A", rangeKey, gens["A"], window)
	assert.False(t, ok)
}

func TestAvailabilityCache_FullyBusyEntryIsAHit(t *testing.T) {
	ctx := context.Background()
	c := NewAvailabilityCache(newMemoryStore(t), time.Minute, nil)
	window := iv(at(0, 0), at(24, 0))
	rangeKey := ParticipantRangeKey(window, workdayPolicy())

	c.PutParticipantFree(ctx, "busy", rangeKey, 0, nil)
	got, ok := c.GetParticipantFree(ctx, "busy", rangeKey, 0, window)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestAvailabilityCache_InconsistentEntriesAreMisses(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	c := NewAvailabilityCache(store, time.Minute, nil)
	window := iv(at(0, 0), at(24, 0))
	rangeKey := ParticipantRangeKey(window, workdayPolicy())
	key := participantStoreKey("A", rangeKey, 0)

	// garbage bytes
	require.NoError(t, store.Set(ctx, key, []byte("{not json"), time.Minute))
	_, ok := c.GetParticipantFree(ctx, "A", rangeKey, 0, window)
	assert.False(t, ok)
	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "rejected entries are deleted")

	// an entry written for someone else under A's key
	raw, _ := json.Marshal(participantEntry{ParticipantID: "B", RangeKey: rangeKey, Free: []entity.TimeInterval{}})
	require.NoError(t, store.Set(ctx, key, raw, time.Minute))
	_, ok = c.GetParticipantFree(ctx, "A", rangeKey, 0, window)
	assert.False(t, ok)

	// overlapping intervals
	raw, _ = json.Marshal(participantEntry{ParticipantID: "A", RangeKey: rangeKey, Free: []entity.TimeInterval{
		iv(at(10, 0), at(12, 0)), iv(at(11, 0), at(13, 0)),
	}})
	require.NoError(t, store.Set(ctx, key, raw, time.Minute))
	_, ok = c.GetParticipantFree(ctx, "A", rangeKey, 0, window)
	assert.False(t, ok)
}

func TestAvailabilityCache_QueryTierSanityChecks(t *testing.T) {
	ctx := context.Background()
	c := NewAvailabilityCache(newMemoryStore(t), time.Minute, nil)
	q := scenarioQuery()
	key := QueryCacheKey(q, 30*time.Minute, "r")
	gens := c.Generations(ctx, q.SortedParticipants())

	ranked := NewSlotRanker(DefaultRankerConfig()).Rank(ctx, scenarioCandidates(), dayWindow(), time.UTC)
	result := &entity.RankedResult{
		QueryKey:    key,
		Slots:       ranked.Slots,
		DataQuality: map[string]entity.ParticipantStatus{"A": entity.StatusOK, "B": entity.StatusOK},
	}

	c.PutQueryResult(ctx, key, gens, q, result)
	got, ok := c.GetQueryResult(ctx, key, gens, q)
	require.True(t, ok)
	assert.Equal(t, result, got)

	// a different query must never be answered from this entry
	other := q
	other.DurationMinutes = 60
	_, ok = c.GetQueryResult(ctx, key, gens, other)
	assert.False(t, ok)

	// a corrupted ranking is rejected
	broken := result.Clone()
	broken.Slots[2].IsRecommended = true
	c.PutQueryResult(ctx, key, gens, q, broken)
	_, ok = c.GetQueryResult(ctx, key, gens, q)
	assert.False(t, ok)
}

func TestAvailabilityCache_InvalidateDropsQueriesContainingParticipant(t *testing.T) {
	ctx := context.Background()
	c := NewAvailabilityCache(newMemoryStore(t), time.Minute, nil)

	q := scenarioQuery()
	key := QueryCacheKey(q, 30*time.Minute, "r")
	c.PutQueryResult(ctx, key, c.Generations(ctx, q.SortedParticipants()), q, &entity.RankedResult{
		QueryKey:       key,
		Slots:          []entity.RankedSlot{},
		NoFeasibleSlot: true,
		DataQuality:    map[string]entity.ParticipantStatus{"A": entity.StatusOK, "B": entity.StatusOK},
	})

	_, err := c.InvalidateParticipant(ctx, "C")
	require.NoError(t, err)
	_, ok := c.GetQueryResult(ctx, key, c.Generations(ctx, q.SortedParticipants()), q)
	assert.True(t, ok)

	_, err = c.InvalidateParticipant(ctx, "B")
	require.NoError(t, err)
	_, ok = c.GetQueryResult(ctx, key, c.Generations(ctx, q.SortedParticipants()), q)
	assert.False(t, ok)
}

func TestAvailabilityCache_InvalidationStateStaysBounded(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewMemoryCache(4)
	require.NoError(t, err)
	c := NewAvailabilityCache(store, time.Minute, nil)

	for i := 0; i < 500; i++ {
		window := iv(at(0, 0).AddDate(0, 0, i), at(24, 0).AddDate(0, 0, i))
		rangeKey := ParticipantRangeKey(window, workdayPolicy())
		gens := c.Generations(ctx, []string{"A", "B"})
		c.PutParticipantFree(ctx, "A", rangeKey, gens["A"], []entity.TimeInterval{window})
		c.PutParticipantFree(ctx, "B", rangeKey, gens["B"], []entity.TimeInterval{window})
		if i%50 == 0 {
			_, err := c.InvalidateParticipant(ctx, "A")
			require.NoError(t, err)
		}
	}

	assert.LessOrEqual(t, store.Len(), 4)
	assert.Equal(t, 1, store.CounterLen(), "one counter per invalidated participant")
	assert.Equal(t, Generations{"A": 10, "B": 0}, c.Generations(ctx, []string{"A", "B"}))
}

func TestAvailabilityCache_GenerationsUnavailableDisablesCache(t *testing.T) {
	c := NewAvailabilityCache(brokenCounterStore{newMemoryStore(t)}, time.Minute, nil)
	assert.Nil(t, c.Generations(context.Background(), []string{"A"}))
}

type brokenCounterStore struct {
	*cache.MemoryCache
}

func (brokenCounterStore) Counters(context.Context, ...string) ([]int64, error) {
	return nil, errors.New("connection refused")
}

func TestAvailabilityCache_ConcurrentIdempotentWrites(t *testing.T) {
	ctx := context.Background()
	c := NewAvailabilityCache(newMemoryStore(t), time.Minute, nil)
	window := iv(at(0, 0), at(24, 0))
	rangeKey := ParticipantRangeKey(window, workdayPolicy())
	free := []entity.TimeInterval{iv(at(9, 0), at(17, 0))}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.PutParticipantFree(ctx, "A", rangeKey, 0, free)
			if got, ok := c.GetParticipantFree(ctx, "A", rangeKey, 0, window); ok {
				assert.Equal(t, free, got)
			}
		}()
	}
	wg.Wait()

	got, ok := c.GetParticipantFree(ctx, "A", rangeKey, 0, window)
	require.True(t, ok)
	assert.Equal(t, free, got)
}
