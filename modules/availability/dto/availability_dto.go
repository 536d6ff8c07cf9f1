package dto

import (
	"strings"
	"time"

	appErrors "smartschedule/core/errors"
	"smartschedule/modules/availability/entity"
)

// ========== Request DTOs ==========

// WorkingHoursRequest is a working-hours policy on the wire.
type WorkingHoursRequest struct {
	DailyStart  string   `json:"daily_start"`  // HH:MM
	DailyEnd    string   `json:"daily_end"`    // HH:MM, 24:00 allowed
	WorkingDays []string `json:"working_days"` // mon..sun
	TimeZone    string   `json:"time_zone"`    // IANA name
}

// FindSlotsRequest is the body of POST /api/v1/availability/slots.
type FindSlotsRequest struct {
	ParticipantIDs  []string             `json:"participant_ids"`
	DurationMinutes int                  `json:"duration_minutes"`
	StartDate       string               `json:"start_date"` // RFC3339
	EndDate         string               `json:"end_date"`   // RFC3339
	WorkingHours    *WorkingHoursRequest `json:"working_hours,omitempty"`
	CoverageMode    string               `json:"coverage_mode,omitempty"`
	StepMinutes     int                  `json:"step_minutes,omitempty"`
	Limit           int                  `json:"limit,omitempty"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short or long English day names, case-insensitively.
func ParseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// ToQuery converts the request into an engine query. Format errors are reported as
// field errors; range and policy rules are left to the engine's validation.
func (r *FindSlotsRequest) ToQuery() (entity.AvailabilityQuery, error) {
	var fields []appErrors.FieldError
	add := func(field, msg string) {
		fields = append(fields, appErrors.FieldError{Field: field, Message: msg})
	}

	q := entity.AvailabilityQuery{
		ParticipantIDs:  r.ParticipantIDs,
		DurationMinutes: r.DurationMinutes,
		Policy:          entity.DefaultWorkingHours(),
		CoverageMode:    entity.CoverageMode(r.CoverageMode),
		StepMinutes:     r.StepMinutes,
		Limit:           r.Limit,
	}

	var err error
	if r.StartDate != "" {
		if q.StartDate, err = time.Parse(time.RFC3339, r.StartDate); err != nil {
			add("start_date", "must be an RFC3339 timestamp")
		}
	}
	if r.EndDate != "" {
		if q.EndDate, err = time.Parse(time.RFC3339, r.EndDate); err != nil {
			add("end_date", "must be an RFC3339 timestamp")
		}
	}

	if wh := r.WorkingHours; wh != nil {
		if wh.DailyStart != "" {
			if q.Policy.DailyStart, err = entity.ParseTimeOfDay(wh.DailyStart); err != nil {
				add("working_hours.daily_start", "must be HH:MM")
			}
		}
		if wh.DailyEnd != "" {
			if q.Policy.DailyEnd, err = entity.ParseTimeOfDay(wh.DailyEnd); err != nil {
				add("working_hours.daily_end", "must be HH:MM")
			}
		}
		if wh.WorkingDays != nil {
			q.Policy.WorkingDays = make([]time.Weekday, 0, len(wh.WorkingDays))
			for _, name := range wh.WorkingDays {
				d, ok := ParseWeekday(name)
				if !ok {
					add("working_hours.working_days", "unknown weekday "+name)
					continue
				}
				q.Policy.WorkingDays = append(q.Policy.WorkingDays, d)
			}
		}
		if wh.TimeZone != "" {
			q.Policy.TimeZone = wh.TimeZone
		}
	}

	if len(fields) > 0 {
		return entity.AvailabilityQuery{}, appErrors.NewValidationError(fields)
	}
	return q, nil
}

// ========== Response DTOs ==========

type SlotResponse struct {
	Start                 string   `json:"start"` // RFC3339, UTC
	End                   string   `json:"end"`
	AvailableParticipants []string `json:"available_participants"`
	TotalParticipants     int      `json:"total_participants"`
	Score                 float64  `json:"score"`
	Reason                []string `json:"reason"`
	IsRecommended         bool     `json:"is_recommended"`
}

type FindSlotsResponse struct {
	QueryKey       string                              `json:"query_key"`
	Slots          []SlotResponse                      `json:"slots"`
	Recommended    *SlotResponse                       `json:"recommended,omitempty"`
	NoFeasibleSlot bool                                `json:"no_feasible_slot"`
	Partial        bool                                `json:"partial"`
	DataQuality    map[string]entity.ParticipantStatus `json:"data_quality"`
}

func ToSlotResponse(s entity.RankedSlot) SlotResponse {
	return SlotResponse{
		Start:                 s.Start.UTC().Format(time.RFC3339),
		End:                   s.End.UTC().Format(time.RFC3339),
		AvailableParticipants: s.AvailableParticipants,
		TotalParticipants:     s.TotalParticipants,
		Score:                 s.Score,
		Reason:                s.Reason,
		IsRecommended:         s.IsRecommended,
	}
}

func ToFindSlotsResponse(r *entity.RankedResult) *FindSlotsResponse {
	out := &FindSlotsResponse{
		QueryKey:       r.QueryKey,
		Slots:          make([]SlotResponse, 0, len(r.Slots)),
		NoFeasibleSlot: r.NoFeasibleSlot,
		Partial:        r.Partial,
		DataQuality:    r.DataQuality,
	}
	for _, s := range r.Slots {
		out.Slots = append(out.Slots, ToSlotResponse(s))
	}
	if top, ok := r.Recommended(); ok {
		rec := ToSlotResponse(top)
		out.Recommended = &rec
	}
	return out
}

type InvalidateResponse struct {
	ParticipantID string `json:"participant_id"`
}
