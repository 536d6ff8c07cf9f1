package entity

import (
	"sort"
	"time"
)

// CoverageMode selects which candidates survive generation.
type CoverageMode string

const (
	// CoverageBest keeps full-coverage candidates, or the best-coverage ones when none exist.
	CoverageBest CoverageMode = "best"
	// CoverageFull keeps full-coverage candidates only.
	CoverageFull CoverageMode = "full"
	// CoverageAny keeps every candidate at which at least one participant is free.
	CoverageAny CoverageMode = "any"
)

func (m CoverageMode) Valid() bool {
	switch m {
	case "", CoverageBest, CoverageFull, CoverageAny:
		return true
	}
	return false
}

func (m CoverageMode) OrDefault() CoverageMode {
	if m == "" {
		return CoverageBest
	}
	return m
}

type AvailabilityQuery struct {
	ParticipantIDs  []string           `json:"participant_ids"`
	DurationMinutes int                `json:"duration_minutes"`
	StartDate       time.Time          `json:"start_date"`
	EndDate         time.Time          `json:"end_date"`
	Policy          WorkingHoursPolicy `json:"policy"`
	CoverageMode    CoverageMode       `json:"coverage_mode,omitempty"`
	// StepMinutes overrides the engine's candidate step when > 0.
	StepMinutes int `json:"step_minutes,omitempty"`
	// Limit trims the ranked list when > 0.
	Limit int `json:"limit,omitempty"`
}

// SortedParticipants returns a sorted copy of the participant ids.
func (q AvailabilityQuery) SortedParticipants() []string {
	out := append([]string(nil), q.ParticipantIDs...)
	sort.Strings(out)
	return out
}

// SearchWindow is the query range after normalisation to UTC.
func (q AvailabilityQuery) SearchWindow() TimeInterval {
	return TimeInterval{Start: q.StartDate.UTC(), End: q.EndDate.UTC()}
}

func (q AvailabilityQuery) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}
