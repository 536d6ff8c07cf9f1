package entity

// AvailabilitySlot is a maximal interval during which exactly AvailableParticipants are free.
type AvailabilitySlot struct {
	TimeInterval
	AvailableParticipants []string `json:"available_participants"`
	TotalParticipants     int      `json:"total_participants"`
}

func (s AvailabilitySlot) Coverage() float64 {
	if s.TotalParticipants == 0 {
		return 0
	}
	return float64(len(s.AvailableParticipants)) / float64(s.TotalParticipants)
}

func (s AvailabilitySlot) FullCoverage() bool {
	return s.TotalParticipants > 0 && len(s.AvailableParticipants) == s.TotalParticipants
}

// RankedSlot is a candidate slot with its score and explanation.
type RankedSlot struct {
	AvailabilitySlot
	Score         float64  `json:"score"`
	Reason        []string `json:"reason"`
	IsRecommended bool     `json:"is_recommended"`
}

// ParticipantStatus is the data-quality outcome of one participant's calendar fetch.
type ParticipantStatus string

const (
	StatusOK             ParticipantStatus = "ok"
	StatusDegradedToFree ParticipantStatus = "degraded-to-free"
	StatusTimeout        ParticipantStatus = "timeout"
)

// RankedResult is the answer to one AvailabilityQuery.
type RankedResult struct {
	QueryKey       string                       `json:"query_key"`
	Slots          []RankedSlot                 `json:"slots"`
	NoFeasibleSlot bool                         `json:"no_feasible_slot"`
	Partial        bool                         `json:"partial"`
	DataQuality    map[string]ParticipantStatus `json:"data_quality"`
}

// Recommended returns the recommended slot, if any.
func (r *RankedResult) Recommended() (RankedSlot, bool) {
	for _, s := range r.Slots {
		if s.IsRecommended {
			return s, true
		}
	}
	return RankedSlot{}, false
}

// AllOK reports whether every participant's calendar was fetched successfully.
func (r *RankedResult) AllOK() bool {
	for _, st := range r.DataQuality {
		if st != StatusOK {
			return false
		}
	}
	return true
}

// Clone deep-copies the result so cached values are never shared with callers.
func (r *RankedResult) Clone() *RankedResult {
	out := *r
	out.Slots = make([]RankedSlot, len(r.Slots))
	for i, s := range r.Slots {
		s.AvailableParticipants = append([]string(nil), s.AvailableParticipants...)
		s.Reason = append([]string(nil), s.Reason...)
		out.Slots[i] = s
	}
	out.DataQuality = make(map[string]ParticipantStatus, len(r.DataQuality))
	for k, v := range r.DataQuality {
		out.DataQuality[k] = v
	}
	return &out
}
