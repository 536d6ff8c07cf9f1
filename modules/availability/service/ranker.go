package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"smartschedule/core/constants"
	appErrors "smartschedule/core/errors"
	"smartschedule/modules/availability/entity"
)

const rankChunk = 64

type RankingWeights struct {
	Coverage  float64 `json:"coverage"`
	TimeOfDay float64 `json:"time_of_day"`
	DayOfWeek float64 `json:"day_of_week"`
	Earliness float64 `json:"earliness"`
}

func (w RankingWeights) sum() float64 {
	return w.Coverage + w.TimeOfDay + w.DayOfWeek + w.Earliness
}

type RankerConfig struct {
	Weights RankingWeights `json:"weights"`
	// PeakHour is the local hour (fractional) at which the time-of-day term is 1.
	PeakHour float64 `json:"peak_hour"`
	// SpreadHours is the standard deviation of the time-of-day bell.
	SpreadHours float64 `json:"spread_hours"`
	// DayMultipliers is indexed by time.Weekday; values are clamped to [0, 1].
	DayMultipliers [7]float64 `json:"day_multipliers"`
}

func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		Weights:     RankingWeights{Coverage: 0.5, TimeOfDay: 0.3, DayOfWeek: 0.1, Earliness: 0.1},
		PeakHour:    10,
		SpreadHours: 2.5,
		DayMultipliers: [7]float64{
			time.Sunday:    0.2,
			time.Monday:    0.8,
			time.Tuesday:   1.0,
			time.Wednesday: 1.0,
			time.Thursday:  1.0,
			time.Friday:    0.7,
			time.Saturday:  0.2,
		},
	}
}

// Fingerprint identifies the configuration inside cache keys.
func (c RankerConfig) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%g|%g|%g|%g|%g|%g", c.Weights.Coverage, c.Weights.TimeOfDay, c.Weights.DayOfWeek, c.Weights.Earliness, c.PeakHour, c.SpreadHours)
	for _, m := range c.DayMultipliers {
		fmt.Fprintf(h, "|%g", m)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

type factor int

const (
	factorCoverage factor = iota
	factorTimeOfDay
	factorDayOfWeek
	factorEarliness
)

type scored struct {
	slot          entity.AvailabilitySlot
	score         float64
	contributions [4]float64
	local         time.Time
	earliness     float64
	tieBreak      string
}

// RankOutput is the ranked candidate list.
type RankOutput struct {
	Slots          []entity.RankedSlot
	NoFeasibleSlot bool
	// Partial is set when ctx ended before every candidate was scored.
	Partial bool
}

// SlotRanker scores candidates with a fixed weighted rubric and explains each score.
type SlotRanker struct {
	cfg         RankerConfig
	fingerprint string
}

func NewSlotRanker(cfg RankerConfig) *SlotRanker {
	if cfg.Weights.sum() <= 0 {
		cfg.Weights = DefaultRankerConfig().Weights
	}
	if cfg.SpreadHours <= 0 {
		cfg.SpreadHours = DefaultRankerConfig().SpreadHours
	}
	return &SlotRanker{cfg: cfg, fingerprint: cfg.Fingerprint()}
}

func (r *SlotRanker) Fingerprint() string {
	return r.fingerprint
}

// Rank orders candidates by descending score and marks exactly one as recommended.
// window is the search window used by the earliness term. The first chunk of candidates
// is always scored; later chunks are skipped once ctx is done.
func (r *SlotRanker) Rank(ctx context.Context, candidates []entity.AvailabilitySlot, window entity.TimeInterval, loc *time.Location) RankOutput {
	if len(candidates) == 0 {
		return RankOutput{Slots: []entity.RankedSlot{}, NoFeasibleSlot: true}
	}

	out := RankOutput{}
	results := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		if i > 0 && i%rankChunk == 0 && ctx.Err() != nil {
			out.Partial = true
			break
		}
		results = append(results, r.score(c, window, loc))
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.slot.Start.Equal(b.slot.Start) {
			return a.slot.Start.Before(b.slot.Start)
		}
		if !a.slot.End.Equal(b.slot.End) {
			return a.slot.End.Before(b.slot.End)
		}
		return a.tieBreak < b.tieBreak
	})

	out.Slots = make([]entity.RankedSlot, len(results))
	for i, s := range results {
		out.Slots[i] = entity.RankedSlot{
			AvailabilitySlot: s.slot,
			Score:            s.score,
			Reason:           r.explain(s),
		}
	}
	out.Slots[0].IsRecommended = true
	out.Slots[0].Reason = append([]string{constants.RecommendedMarker}, out.Slots[0].Reason...)
	return out
}

func (r *SlotRanker) score(c entity.AvailabilitySlot, window entity.TimeInterval, loc *time.Location) scored {
	local := c.Start.In(loc)
	w := r.cfg.Weights
	total := w.sum()

	terms := [4]float64{
		factorCoverage:  c.Coverage(),
		factorTimeOfDay: r.timeOfDay(local),
		factorDayOfWeek: clamp01(r.cfg.DayMultipliers[local.Weekday()]),
		factorEarliness: earliness(c.Start, window),
	}
	weights := [4]float64{w.Coverage, w.TimeOfDay, w.DayOfWeek, w.Earliness}

	s := scored{slot: c, local: local, earliness: terms[factorEarliness], tieBreak: tieBreakHash(c)}
	sum := 0.0
	for i := range terms {
		s.contributions[i] = weights[i] * terms[i] / total
		sum += s.contributions[i]
	}
	s.score = round6(sum)
	return s
}

// timeOfDay is a gaussian over local clock hours centred on PeakHour.
func (r *SlotRanker) timeOfDay(local time.Time) float64 {
	h := float64(local.Hour()) + float64(local.Minute())/60
	d := h - r.cfg.PeakHour
	return math.Exp(-(d * d) / (2 * r.cfg.SpreadHours * r.cfg.SpreadHours))
}

func earliness(start time.Time, window entity.TimeInterval) float64 {
	span := window.Duration()
	if span <= 0 {
		return 1
	}
	return clamp01(1 - float64(start.Sub(window.Start))/float64(span))
}

func (r *SlotRanker) explain(s scored) []string {
	order := []factor{factorCoverage, factorTimeOfDay, factorDayOfWeek, factorEarliness}
	sort.SliceStable(order, func(i, j int) bool {
		return s.contributions[order[i]] > s.contributions[order[j]]
	})

	reasons := make([]string, 0, len(order))
	for _, f := range order {
		if s.contributions[f] <= 1e-9 {
			continue
		}
		reasons = append(reasons, r.token(f, s))
	}
	return reasons
}

func (r *SlotRanker) token(f factor, s scored) string {
	switch f {
	case factorCoverage:
		if s.slot.FullCoverage() {
			return "all participants available"
		}
		return fmt.Sprintf("%d of %d participants available", len(s.slot.AvailableParticipants), s.slot.TotalParticipants)
	case factorTimeOfDay:
		hour := s.local.Hour()
		switch {
		case hour < 12 && r.timeOfDay(s.local) >= 0.6:
			return "within preferred morning hours"
		case hour < 12:
			return "morning slot"
		case hour < 15:
			return "early afternoon slot"
		default:
			return "late afternoon slot"
		}
	case factorDayOfWeek:
		return s.local.Weekday().String() + " slot"
	default:
		if s.earliness >= 0.5 {
			return "early in search window"
		}
		return "within search window"
	}
}

// tieBreakHash orders slots whose score and bounds are equal by their content alone.
func tieBreakHash(c entity.AvailabilitySlot) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(c.Start.UnixNano()))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(c.End.UnixNano()))
	h.Write(buf[:])
	h.Write([]byte(strings.Join(c.AvailableParticipants, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// CheckRanking verifies the recommendation invariants of a ranked list: a non-empty list has
// exactly one recommended slot, it comes first, carries the marker, and holds the maximum
// score with the earliest start among equal scores.
func CheckRanking(slots []entity.RankedSlot) error {
	if len(slots) == 0 {
		return nil
	}

	recommended := -1
	for i, s := range slots {
		if s.IsRecommended {
			if recommended >= 0 {
				return invariantError("slots %d and %d are both recommended", recommended, i)
			}
			recommended = i
		}
		if s.Score < 0 || s.Score > 1 {
			return invariantError("slot %d score %g outside [0, 1]", i, s.Score)
		}
	}
	if recommended != 0 {
		return invariantError("recommended slot index is %d, want 0", recommended)
	}

	top := slots[0]
	if len(top.Reason) == 0 || top.Reason[0] != constants.RecommendedMarker {
		return invariantError("recommended slot reason lacks marker")
	}
	for i, s := range slots[1:] {
		if s.Score > top.Score || (s.Score == top.Score && s.Start.Before(top.Start)) {
			return invariantError("slot %d outranks the recommended slot", i+1)
		}
	}
	return nil
}

func invariantError(format string, args ...any) error {
	return appErrors.NewAppError(appErrors.ErrInvariantViolation, fmt.Sprintf(format, args...), nil)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
