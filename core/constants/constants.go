package constants

import "time"

const (
	DefaultTimeout = 10 * time.Second

	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 10
	DatabaseConnMaxLifetime = 30 // minutes
)

// Availability engine defaults.
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480

	SlotGranularity     = 15 * time.Minute
	DefaultSlotStep     = 30 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
	DefaultQueryTimeout = 20 * time.Second
	DefaultCacheTTL     = 30 * time.Minute
	DefaultMaxRangeDays = 62
	DefaultCacheEntries = 10000

	RecommendedMarker = "[recommended]"
)

// Cache key prefixes.
const (
	CacheKeyQueryPrefix       = "q:"
	CacheKeyParticipantPrefix = "p:"
	CacheKeyGenerationPrefix  = "g:"
)
