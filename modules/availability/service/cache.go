package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"smartschedule/core/cache"
	"smartschedule/core/constants"
	"smartschedule/core/logger"
	"smartschedule/core/metrics"
	"smartschedule/modules/availability/entity"
)

const (
	tierParticipant = "participant"
	tierQuery       = "query"
)

// AvailabilityCache memoizes per-participant free intervals and whole ranked results.
// Entries are pure functions of their key, so concurrent writers may overwrite each other.
//
// Every stored key embeds the invalidation generation of each participant it depends on.
// The generations are counters in the shared store, so InvalidateParticipant on any
// instance makes the old entries unreachable everywhere; they then age out by TTL or LRU.
type AvailabilityCache struct {
	store   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// Generations maps each participant of a query to its invalidation counter.
// A nil Generations disables both tiers for the query.
type Generations map[string]int64

func NewAvailabilityCache(store cache.Cache, ttl time.Duration, m *metrics.Metrics) *AvailabilityCache {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	return &AvailabilityCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
	}
}

func generationKey(participantID string) string {
	return constants.CacheKeyGenerationPrefix + participantID
}

// generationTTL outlives every entry written under a generation, so a counter that
// expires and restarts at zero can never revive an entry from before its first bump.
func (c *AvailabilityCache) generationTTL() time.Duration {
	return 2 * c.ttl
}

// Generations reads the current counters for participants. On a store error it returns
// nil and the query runs uncached.
func (c *AvailabilityCache) Generations(ctx context.Context, participants []string) Generations {
	keys := make([]string, len(participants))
	for i, p := range participants {
		keys[i] = generationKey(p)
	}
	values, err := c.store.Counters(ctx, keys...)
	if err != nil {
		logger.Warn("AvailabilityCache:Generations:Error", "participants", len(participants), "error", err)
		return nil
	}

	gens := make(Generations, len(participants))
	for i, p := range participants {
		gens[p] = values[i]
	}
	return gens
}

// suffix renders the generations of participants in order.
func (g Generations) suffix(participants []string) string {
	parts := make([]string, len(participants))
	for i, p := range participants {
		parts[i] = p + "=" + strconv.FormatInt(g[p], 10)
	}
	return hashHex(strings.Join(parts, "\x00"))[:16]
}

type participantEntry struct {
	ParticipantID string                `json:"participant_id"`
	RangeKey      string                `json:"range_key"`
	Free          []entity.TimeInterval `json:"free"`
}

type queryEntry struct {
	Key             string               `json:"key"`
	Participants    []string             `json:"participants"`
	DurationMinutes int                  `json:"duration_minutes"`
	Result          *entity.RankedResult `json:"result"`
}

// ParticipantRangeKey canonicalizes the (date range, policy) part of a participant key.
func ParticipantRangeKey(window entity.TimeInterval, policy entity.WorkingHoursPolicy) string {
	return window.Start.UTC().Format(time.RFC3339Nano) + "|" + window.End.UTC().Format(time.RFC3339Nano) + "|" + policy.Canonical()
}

func participantCacheKey(participantID, rangeKey string) string {
	return constants.CacheKeyParticipantPrefix + hashHex(participantID+"\x00"+rangeKey)
}

type canonicalQuery struct {
	Participants []string            `json:"participants"`
	Start        string              `json:"start"`
	End          string              `json:"end"`
	Duration     int                 `json:"duration"`
	Policy       string              `json:"policy"`
	Coverage     entity.CoverageMode `json:"coverage"`
	StepMinutes  int64               `json:"step_minutes"`
	Limit        int                 `json:"limit"`
	Ranker       string              `json:"ranker"`
}

// QueryCacheKey is the whole-query key: sorted participants, range, duration, policy and
// every option that changes the ranked output.
func QueryCacheKey(q entity.AvailabilityQuery, step time.Duration, rankerFingerprint string) string {
	window := q.SearchWindow()
	raw, _ := json.Marshal(canonicalQuery{
		Participants: q.SortedParticipants(),
		Start:        window.Start.Format(time.RFC3339Nano),
		End:          window.End.Format(time.RFC3339Nano),
		Duration:     q.DurationMinutes,
		Policy:       q.Policy.Canonical(),
		Coverage:     q.CoverageMode.OrDefault(),
		StepMinutes:  int64(step / time.Minute),
		Limit:        q.Limit,
		Ranker:       rankerFingerprint,
	})
	return constants.CacheKeyQueryPrefix + hashHex(string(raw))
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (c *AvailabilityCache) GetParticipantFree(ctx context.Context, participantID, rangeKey string, generation int64, window entity.TimeInterval) ([]entity.TimeInterval, bool) {
	key := participantStoreKey(participantID, rangeKey, generation)

	var entry participantEntry
	if !c.load(ctx, tierParticipant, key, &entry) {
		return nil, false
	}
	if err := checkParticipantEntry(entry, participantID, rangeKey, window); err != nil {
		c.reject(ctx, tierParticipant, key, err)
		return nil, false
	}

	c.metrics.RecordCacheLookup(tierParticipant, "hit")
	return entry.Free, true
}

func (c *AvailabilityCache) PutParticipantFree(ctx context.Context, participantID, rangeKey string, generation int64, free []entity.TimeInterval) {
	key := participantStoreKey(participantID, rangeKey, generation)
	if free == nil {
		free = []entity.TimeInterval{}
	}
	c.save(ctx, key, participantEntry{ParticipantID: participantID, RangeKey: rangeKey, Free: free})
}

func participantStoreKey(participantID, rangeKey string, generation int64) string {
	return participantCacheKey(participantID, rangeKey) + ":" + strconv.FormatInt(generation, 10)
}

func queryStoreKey(key string, q entity.AvailabilityQuery, gens Generations) string {
	return key + ":" + gens.suffix(q.SortedParticipants())
}

// GetQueryResult looks up the ranked result stored for key under the participants' generations.
func (c *AvailabilityCache) GetQueryResult(ctx context.Context, key string, gens Generations, q entity.AvailabilityQuery) (*entity.RankedResult, bool) {
	storeKey := queryStoreKey(key, q, gens)

	var entry queryEntry
	if !c.load(ctx, tierQuery, storeKey, &entry) {
		return nil, false
	}
	if err := checkQueryEntry(entry, key, q); err != nil {
		c.reject(ctx, tierQuery, storeKey, err)
		return nil, false
	}

	c.metrics.RecordCacheLookup(tierQuery, "hit")
	return entry.Result, true
}

func (c *AvailabilityCache) PutQueryResult(ctx context.Context, key string, gens Generations, q entity.AvailabilityQuery, result *entity.RankedResult) {
	c.save(ctx, queryStoreKey(key, q, gens), queryEntry{
		Key:             key,
		Participants:    q.SortedParticipants(),
		DurationMinutes: q.DurationMinutes,
		Result:          result,
	})
}

// InvalidateParticipant bumps participantID's generation in the shared store, so every
// entry that depends on it stops being reachable from any instance. It returns the new generation.
func (c *AvailabilityCache) InvalidateParticipant(ctx context.Context, participantID string) (int64, error) {
	c.metrics.RecordInvalidation()
	gen, err := c.store.Incr(ctx, generationKey(participantID), c.generationTTL())
	if err != nil {
		return 0, fmt.Errorf("invalidate participant %s: %w", participantID, err)
	}
	return gen, nil
}

func (c *AvailabilityCache) load(ctx context.Context, tier, key string, dest any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn("AvailabilityCache:Get:Error", "tier", tier, "key", key, "error", err)
		}
		c.metrics.RecordCacheLookup(tier, "miss")
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.reject(ctx, tier, key, err)
		return false
	}
	return true
}

func (c *AvailabilityCache) save(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Error("AvailabilityCache:Set:MarshalError", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		logger.Warn("AvailabilityCache:Set:Error", "key", key, "error", err)
	}
}

// reject treats an entry that failed its sanity check as a miss and removes it.
func (c *AvailabilityCache) reject(ctx context.Context, tier, key string, reason error) {
	logger.Warn("AvailabilityCache:Inconsistency", "tier", tier, "key", key, "reason", reason)
	c.metrics.RecordCacheLookup(tier, "inconsistent")
	if err := c.store.Delete(ctx, key); err != nil {
		logger.Warn("AvailabilityCache:Inconsistency:DeleteError", "key", key, "error", err)
	}
}

func checkParticipantEntry(e participantEntry, participantID, rangeKey string, window entity.TimeInterval) error {
	if e.ParticipantID != participantID || e.RangeKey != rangeKey {
		return fmt.Errorf("entry belongs to %s/%s", e.ParticipantID, e.RangeKey)
	}
	for i, iv := range e.Free {
		if !iv.IsValid() {
			return fmt.Errorf("interval %d is empty or inverted", i)
		}
		if iv.Start.Before(window.Start) || iv.End.After(window.End) {
			return fmt.Errorf("interval %d outside the search window", i)
		}
		if i > 0 && iv.Start.Before(e.Free[i-1].End) {
			return fmt.Errorf("interval %d overlaps its predecessor", i)
		}
	}
	return nil
}

func checkQueryEntry(e queryEntry, key string, q entity.AvailabilityQuery) error {
	if e.Key != key || e.Result == nil {
		return fmt.Errorf("entry key mismatch")
	}
	participants := q.SortedParticipants()
	if !sameSet(e.Participants, participants) || e.DurationMinutes != q.DurationMinutes {
		return fmt.Errorf("entry was stored for a different query")
	}
	if len(e.Result.DataQuality) != len(participants) {
		return fmt.Errorf("data quality covers %d of %d participants", len(e.Result.DataQuality), len(participants))
	}

	allowed := make(map[string]bool, len(participants))
	for _, p := range participants {
		allowed[p] = true
		if _, ok := e.Result.DataQuality[p]; !ok {
			return fmt.Errorf("data quality missing %s", p)
		}
	}
	for i, s := range e.Result.Slots {
		if s.Duration() != q.Duration() {
			return fmt.Errorf("slot %d has duration %s", i, s.Duration())
		}
		if s.TotalParticipants != len(participants) {
			return fmt.Errorf("slot %d total participants %d", i, s.TotalParticipants)
		}
		for _, p := range s.AvailableParticipants {
			if !allowed[p] {
				return fmt.Errorf("slot %d lists unknown participant %s", i, p)
			}
		}
	}
	if e.Result.NoFeasibleSlot != (len(e.Result.Slots) == 0) {
		return fmt.Errorf("no-feasible flag disagrees with slot count")
	}
	return CheckRanking(e.Result.Slots)
}
