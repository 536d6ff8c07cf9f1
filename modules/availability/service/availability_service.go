package service

import (
	"context"
	"strings"
	"time"

	"smartschedule/core/cache"
	"smartschedule/core/constants"
	appErrors "smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/core/metrics"
	"smartschedule/modules/availability/entity"
)

type AvailabilityServiceInterface interface {
	FindRankedSlots(ctx context.Context, q entity.AvailabilityQuery) (*entity.RankedResult, error)
	InvalidateParticipant(ctx context.Context, participantID string) error
}

type EngineConfig struct {
	FetchTimeout         time.Duration
	QueryTimeout         time.Duration
	CacheTTL             time.Duration
	Granularity          time.Duration
	Step                 time.Duration
	MaxRangeDays         int
	MaxConcurrentFetches int
	// StrictInvariants panics on a broken ranking instead of returning ErrInvariantViolation.
	StrictInvariants bool
	Ranker           RankerConfig
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FetchTimeout:         constants.DefaultFetchTimeout,
		QueryTimeout:         constants.DefaultQueryTimeout,
		CacheTTL:             constants.DefaultCacheTTL,
		Granularity:          constants.SlotGranularity,
		Step:                 constants.DefaultSlotStep,
		MaxRangeDays:         constants.DefaultMaxRangeDays,
		MaxConcurrentFetches: defaultMaxConcurrentFetches,
		Ranker:               DefaultRankerConfig(),
	}
}

type AvailabilityService struct {
	cfg       EngineConfig
	cache     *AvailabilityCache
	merger    *AvailabilityMerger
	generator *SlotGenerator
	ranker    *SlotRanker
	metrics   *metrics.Metrics
}

// NewAvailabilityService wires the engine. A nil store disables both cache tiers.
func NewAvailabilityService(provider CalendarAvailabilityProvider, store cache.Cache, m *metrics.Metrics, cfg EngineConfig) *AvailabilityService {
	var availabilityCache *AvailabilityCache
	if store != nil {
		availabilityCache = NewAvailabilityCache(store, cfg.CacheTTL, m)
	}

	return &AvailabilityService{
		cfg:       cfg,
		cache:     availabilityCache,
		merger:    NewAvailabilityMerger(provider, availabilityCache, m, cfg.FetchTimeout, cfg.MaxConcurrentFetches),
		generator: NewSlotGenerator(cfg.Granularity, cfg.Step),
		ranker:    NewSlotRanker(cfg.Ranker),
		metrics:   m,
	}
}

// FindRankedSlots answers q. A validation failure is returned as ErrInvalidQuery; an empty
// answer is a result with NoFeasibleSlot set. When ctx (or the configured query timeout)
// expires, whatever was computed is returned with Partial set.
func (s *AvailabilityService) FindRankedSlots(ctx context.Context, q entity.AvailabilityQuery) (*entity.RankedResult, error) {
	started := time.Now()

	loc, err := ValidateQuery(q, s.cfg.MaxRangeDays, s.cfg.Granularity)
	if err != nil {
		logger.Info("AvailabilityService:FindRankedSlots:InvalidQuery", "error", err)
		s.metrics.ObserveQuery("invalid", time.Since(started))
		return nil, err
	}

	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	generator := s.generator
	if q.StepMinutes > 0 {
		generator = generator.WithStep(time.Duration(q.StepMinutes) * time.Minute)
	}
	key := QueryCacheKey(q, generator.Step, s.ranker.Fingerprint())

	var gens Generations
	if s.cache != nil {
		gens = s.cache.Generations(ctx, q.SortedParticipants())
	}
	if gens != nil {
		if cached, ok := s.cache.GetQueryResult(ctx, key, gens, q); ok {
			logger.Debug("AvailabilityService:FindRankedSlots:CacheHit", "key", key)
			s.metrics.ObserveQuery("cached", time.Since(started))
			return cached, nil
		}
	}

	merged := s.merger.Merge(ctx, q, loc, gens)
	candidates := generator.Generate(merged.Slots, q.Duration(), q.CoverageMode, loc)
	s.metrics.ObserveCandidates(len(candidates))

	ranked := s.ranker.Rank(ctx, candidates, q.SearchWindow(), loc)
	if err := s.checkInvariants(ranked.Slots); err != nil {
		s.metrics.ObserveQuery("invariant_violation", time.Since(started))
		return nil, err
	}

	slots := ranked.Slots
	if q.Limit > 0 && len(slots) > q.Limit {
		slots = slots[:q.Limit]
	}

	result := &entity.RankedResult{
		QueryKey:       key,
		Slots:          slots,
		NoFeasibleSlot: ranked.NoFeasibleSlot,
		Partial:        merged.Partial || ranked.Partial,
		DataQuality:    merged.DataQuality,
	}

	outcome := "ok"
	switch {
	case result.Partial:
		outcome = "partial"
		logger.Warn("AvailabilityService:FindRankedSlots:Partial", "key", key, "scored", len(slots), "candidates", len(candidates))
	case result.NoFeasibleSlot:
		outcome = "no_feasible_slot"
	}

	if gens != nil && !result.Partial && result.AllOK() {
		s.cache.PutQueryResult(ctx, key, gens, q, result)
	}

	logger.Info("AvailabilityService:FindRankedSlots:Done",
		"key", key,
		"participants", len(q.ParticipantIDs),
		"candidates", len(candidates),
		"returned", len(slots),
		"outcome", outcome,
		"elapsed", time.Since(started),
	)
	s.metrics.ObserveQuery(outcome, time.Since(started))
	return result.Clone(), nil
}

// InvalidateParticipant drops cached availability that depends on participantID.
func (s *AvailabilityService) InvalidateParticipant(ctx context.Context, participantID string) error {
	if strings.TrimSpace(participantID) == "" {
		return appErrors.NewAppError(appErrors.ErrInvalidInput, "participant id is required", nil)
	}
	if s.cache == nil {
		return nil
	}

	generation, err := s.cache.InvalidateParticipant(ctx, participantID)
	if err != nil {
		logger.Error("AvailabilityService:InvalidateParticipant:Error", "participant_id", participantID, "error", err)
		return appErrors.NewAppError(appErrors.ErrInternalServer, "failed to invalidate participant", err)
	}
	logger.Info("AvailabilityService:InvalidateParticipant:Done", "participant_id", participantID, "generation", generation)
	return nil
}

func (s *AvailabilityService) checkInvariants(slots []entity.RankedSlot) error {
	err := CheckRanking(slots)
	if err == nil {
		return nil
	}
	logger.Error("AvailabilityService:InvariantViolation", "error", err)
	if s.cfg.StrictInvariants {
		panic(err)
	}
	return err
}
