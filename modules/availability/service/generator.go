package service

import (
	"sort"
	"time"

	"smartschedule/core/constants"
	"smartschedule/modules/availability/entity"
)

// SlotGenerator cuts availability slots into fixed-duration candidates.
type SlotGenerator struct {
	// Granularity aligns candidate starts to wall-clock boundaries in the policy time zone.
	Granularity time.Duration
	// Step is the distance between consecutive candidate starts within one slot.
	Step time.Duration
}

func NewSlotGenerator(granularity, step time.Duration) *SlotGenerator {
	if granularity <= 0 {
		granularity = constants.SlotGranularity
	}
	if step <= 0 {
		step = constants.DefaultSlotStep
	}
	return &SlotGenerator{Granularity: granularity, Step: step}
}

// WithStep returns a copy stepping by step.
func (g *SlotGenerator) WithStep(step time.Duration) *SlotGenerator {
	if step <= 0 {
		return g
	}
	cp := *g
	cp.Step = step
	return &cp
}

// Generate emits every candidate of exactly duration inside slots, filtered by mode,
// in chronological order.
func (g *SlotGenerator) Generate(
	slots []entity.AvailabilitySlot,
	duration time.Duration,
	mode entity.CoverageMode,
	loc *time.Location,
) []entity.AvailabilitySlot {
	if duration <= 0 {
		return nil
	}

	seen := make(map[[2]int64]struct{})
	var candidates []entity.AvailabilitySlot
	best := 0

	for _, slot := range slots {
		if len(slot.AvailableParticipants) == 0 || slot.Duration() < duration {
			continue
		}

		for start := g.alignUp(slot.Start, loc); !start.Add(duration).After(slot.End); start = start.Add(g.Step) {
			end := start.Add(duration)
			key := [2]int64{start.UnixNano(), end.UnixNano()}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			candidates = append(candidates, entity.AvailabilitySlot{
				TimeInterval:          entity.TimeInterval{Start: start, End: end},
				AvailableParticipants: append([]string(nil), slot.AvailableParticipants...),
				TotalParticipants:     slot.TotalParticipants,
			})
			if n := len(slot.AvailableParticipants); n > best {
				best = n
			}
		}
	}

	candidates = filterByCoverage(candidates, mode, best)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})
	return candidates
}

func filterByCoverage(candidates []entity.AvailabilitySlot, mode entity.CoverageMode, best int) []entity.AvailabilitySlot {
	keep := func(c entity.AvailabilitySlot) bool { return true }
	switch mode.OrDefault() {
	case entity.CoverageFull:
		keep = func(c entity.AvailabilitySlot) bool { return c.FullCoverage() }
	case entity.CoverageBest:
		// full coverage when it exists, otherwise the highest headcount seen
		keep = func(c entity.AvailabilitySlot) bool { return len(c.AvailableParticipants) == best }
	}

	out := candidates[:0]
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// alignUp rounds t up to the next Granularity boundary counted from local midnight.
func (g *SlotGenerator) alignUp(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	rem := local.Sub(midnight) % g.Granularity
	if rem == 0 {
		return t
	}
	return t.Add(g.Granularity - rem)
}
