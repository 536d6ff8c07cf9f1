package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"smartschedule/core/constants"
	appErrors "smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/core/metrics"
	"smartschedule/modules/availability/entity"

	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrentFetches = 16

// AvailabilityMerger turns per-participant busy calendars into maximal availability slots.
type AvailabilityMerger struct {
	provider     CalendarAvailabilityProvider
	cache        *AvailabilityCache
	metrics      *metrics.Metrics
	fetchTimeout time.Duration
	maxFetches   int
}

type MergeResult struct {
	Slots       []entity.AvailabilitySlot
	DataQuality map[string]entity.ParticipantStatus
	// Partial is set when the caller's context ended while calendars were being fetched.
	Partial bool
}

// NewAvailabilityMerger builds a merger. cache and m may be nil.
func NewAvailabilityMerger(provider CalendarAvailabilityProvider, cache *AvailabilityCache, m *metrics.Metrics, fetchTimeout time.Duration, maxFetches int) *AvailabilityMerger {
	if fetchTimeout <= 0 {
		fetchTimeout = constants.DefaultFetchTimeout
	}
	if maxFetches <= 0 {
		maxFetches = defaultMaxConcurrentFetches
	}
	return &AvailabilityMerger{
		provider:     provider,
		cache:        cache,
		metrics:      m,
		fetchTimeout: fetchTimeout,
		maxFetches:   maxFetches,
	}
}

// Merge fetches every participant concurrently and sweeps their free time into slots.
// Fetch failures never fail the merge; they degrade the participant to free.
// gens selects the participant-tier entries; nil bypasses the tier.
func (m *AvailabilityMerger) Merge(ctx context.Context, q entity.AvailabilityQuery, loc *time.Location, gens Generations) *MergeResult {
	window := q.SearchWindow()
	windows := WorkingWindows(window, q.Policy, loc)
	participants := q.SortedParticipants()
	rangeKey := ParticipantRangeKey(window, q.Policy)

	free := make([][]entity.TimeInterval, len(participants))
	status := make([]entity.ParticipantStatus, len(participants))

	var g errgroup.Group
	g.SetLimit(m.maxFetches)
	for i, id := range participants {
		g.Go(func() error {
			free[i], status[i] = m.collect(ctx, id, window, windows, rangeKey, gens)
			return nil
		})
	}
	_ = g.Wait()

	quality := make(map[string]entity.ParticipantStatus, len(participants))
	for i, id := range participants {
		quality[id] = status[i]
		m.metrics.RecordParticipantFetch(string(status[i]))
	}

	return &MergeResult{
		Slots:       SweepAvailability(participants, free, windows),
		DataQuality: quality,
		Partial:     ctx.Err() != nil,
	}
}

func (m *AvailabilityMerger) collect(
	ctx context.Context,
	participantID string,
	window entity.TimeInterval,
	windows []entity.TimeInterval,
	rangeKey string,
	gens Generations,
) ([]entity.TimeInterval, entity.ParticipantStatus) {
	useCache := m.cache != nil && gens != nil
	if useCache {
		if cached, ok := m.cache.GetParticipantFree(ctx, participantID, rangeKey, gens[participantID], window); ok {
			return cached, entity.StatusOK
		}
	}

	busy, err := m.fetch(ctx, participantID, window)
	if err != nil {
		st := entity.StatusDegradedToFree
		if errors.Is(err, context.DeadlineExceeded) {
			st = entity.StatusTimeout
		}
		logger.Warn("AvailabilityMerger:Fetch:Degraded",
			"participant_id", participantID,
			"status", st,
			"error", err,
		)
		return append([]entity.TimeInterval(nil), windows...), st
	}

	intervals := make([]entity.TimeInterval, 0, len(busy))
	for _, b := range busy {
		if b.ParticipantID != "" && b.ParticipantID != participantID {
			logger.Warn("AvailabilityMerger:Fetch:ForeignInterval", "participant_id", participantID, "interval_participant", b.ParticipantID)
			continue
		}
		if !b.IsValid() {
			continue
		}
		intervals = append(intervals, b.TimeInterval)
	}

	freeIntervals := FreeIntervals(MergeIntervals(intervals), windows)
	if useCache {
		m.cache.PutParticipantFree(ctx, participantID, rangeKey, gens[participantID], freeIntervals)
	}
	return freeIntervals, entity.StatusOK
}

// fetch calls the provider under its own timeout. The call runs in a goroutine so a
// provider that ignores ctx still cannot hold the query past the timeout.
func (m *AvailabilityMerger) fetch(ctx context.Context, participantID string, window entity.TimeInterval) ([]entity.BusyInterval, error) {
	fctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	type fetchResult struct {
		busy []entity.BusyInterval
		err  error
	}
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		busy, err := m.provider.GetBusyIntervals(fctx, participantID, window.Start, window.End)
		done <- fetchResult{busy: busy, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, appErrors.NewAppError(appErrors.ErrParticipantDataUnavailable, "calendar fetch failed for "+participantID, res.err)
		}
		return res.busy, nil
	case <-fctx.Done():
		return nil, appErrors.NewAppError(appErrors.ErrParticipantDataUnavailable, "calendar fetch timed out for "+participantID, fctx.Err())
	}
}

// WorkingWindows lists the policy's working intervals inside window, one per working day,
// in UTC and chronological order.
func WorkingWindows(window entity.TimeInterval, policy entity.WorkingHoursPolicy, loc *time.Location) []entity.TimeInterval {
	if !window.IsValid() || policy.DailyStart >= policy.DailyEnd {
		return nil
	}

	local := window.Start.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var out []entity.TimeInterval
	for day.Before(window.End) {
		if policy.IsWorkingDay(day.Weekday()) {
			start := policy.DailyStart.On(day.Year(), day.Month(), day.Day(), loc)
			end := policy.DailyEnd.On(day.Year(), day.Month(), day.Day(), loc)
			if start.Before(window.Start) {
				start = window.Start
			}
			if end.After(window.End) {
				end = window.End
			}
			if start.Before(end) {
				out = append(out, entity.TimeInterval{Start: start.UTC(), End: end.UTC()})
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}
	return out
}

// MergeIntervals returns the union of in as sorted, disjoint, non-adjacent intervals.
func MergeIntervals(in []entity.TimeInterval) []entity.TimeInterval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]entity.TimeInterval, 0, len(in))
	for _, iv := range in {
		if iv.IsValid() {
			sorted = append(sorted, entity.TimeInterval{Start: iv.Start.UTC(), End: iv.End.UTC()})
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})
	if len(sorted) == 0 {
		return nil
	}

	merged := []entity.TimeInterval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		// overlapping or adjacent
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// FreeIntervals complements merged busy intervals within each working window.
// busy must be the output of MergeIntervals; windows must be sorted and disjoint.
func FreeIntervals(busy, windows []entity.TimeInterval) []entity.TimeInterval {
	out := make([]entity.TimeInterval, 0, len(windows))
	j := 0
	for _, w := range windows {
		for j < len(busy) && !busy[j].End.After(w.Start) {
			j++
		}

		cursor := w.Start
		for k := j; k < len(busy) && busy[k].Start.Before(w.End); k++ {
			b := busy[k]
			if b.Start.After(cursor) {
				out = append(out, entity.TimeInterval{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
		}
		if cursor.Before(w.End) {
			out = append(out, entity.TimeInterval{Start: cursor, End: w.End})
		}
	}
	return out
}

type sweepEvent struct {
	at          int64
	participant int // -1 marks a working-window boundary
	delta       int
}

// SweepAvailability emits one slot per maximal interval of constant free set inside the
// working windows, then coalesces neighbours with identical sets. participants must be
// sorted; free[i] belongs to participants[i].
func SweepAvailability(participants []string, free [][]entity.TimeInterval, windows []entity.TimeInterval) []entity.AvailabilitySlot {
	events := make([]sweepEvent, 0, 2*len(windows))
	for _, w := range windows {
		events = append(events,
			sweepEvent{at: w.Start.UnixNano(), participant: -1, delta: 1},
			sweepEvent{at: w.End.UnixNano(), participant: -1, delta: -1},
		)
	}
	for i, intervals := range free {
		for _, iv := range intervals {
			events = append(events,
				sweepEvent{at: iv.Start.UnixNano(), participant: i, delta: 1},
				sweepEvent{at: iv.End.UnixNano(), participant: i, delta: -1},
			)
		}
	}
	sort.Slice(events, func(a, b int) bool {
		if events[a].at != events[b].at {
			return events[a].at < events[b].at
		}
		if events[a].participant != events[b].participant {
			return events[a].participant < events[b].participant
		}
		return events[a].delta < events[b].delta
	})

	counts := make([]int, len(participants))
	open := 0
	var slots []entity.AvailabilitySlot

	for i := 0; i < len(events); {
		at := events[i].at
		for ; i < len(events) && events[i].at == at; i++ {
			ev := events[i]
			if ev.participant < 0 {
				open += ev.delta
			} else {
				counts[ev.participant] += ev.delta
			}
		}
		if i == len(events) || open <= 0 {
			continue
		}

		available := make([]string, 0, len(participants))
		for p, c := range counts {
			if c > 0 {
				available = append(available, participants[p])
			}
		}

		start := time.Unix(0, at).UTC()
		end := time.Unix(0, events[i].at).UTC()
		if n := len(slots); n > 0 && slots[n-1].End.Equal(start) && sameSet(slots[n-1].AvailableParticipants, available) {
			slots[n-1].End = end
			continue
		}
		slots = append(slots, entity.AvailabilitySlot{
			TimeInterval:          entity.TimeInterval{Start: start, End: end},
			AvailableParticipants: available,
			TotalParticipants:     len(participants),
		})
	}
	return slots
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
