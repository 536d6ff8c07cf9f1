package service

import (
	"fmt"
	"strings"
	"time"

	"smartschedule/core/constants"
	appErrors "smartschedule/core/errors"
	"smartschedule/modules/availability/entity"
)

// ValidateQuery checks q and returns the policy location. Every violation is reported
// in one ErrInvalidQuery; nothing is defaulted silently. A step must be a multiple of
// granularity, or of SlotGranularity when granularity is not positive.
func ValidateQuery(q entity.AvailabilityQuery, maxRangeDays int, granularity time.Duration) (*time.Location, error) {
	if granularity <= 0 {
		granularity = constants.SlotGranularity
	}
	var fields []appErrors.FieldError
	add := func(field, msg string) {
		fields = append(fields, appErrors.FieldError{Field: field, Message: msg})
	}

	if len(q.ParticipantIDs) == 0 {
		add("participant_ids", "must not be empty")
	}
	seen := make(map[string]bool, len(q.ParticipantIDs))
	for _, id := range q.ParticipantIDs {
		if strings.TrimSpace(id) == "" {
			add("participant_ids", "must not contain blank ids")
			continue
		}
		if seen[id] {
			add("participant_ids", "duplicate id "+id)
		}
		seen[id] = true
	}

	if q.DurationMinutes < constants.MinDurationMinutes || q.DurationMinutes > constants.MaxDurationMinutes {
		add("duration_minutes", "must be between 15 and 480")
	}

	switch {
	case q.StartDate.IsZero() || q.EndDate.IsZero():
		add("start_date", "start_date and end_date are required")
	case !q.StartDate.Before(q.EndDate):
		add("start_date", "must be before end_date")
	case maxRangeDays > 0 && q.EndDate.Sub(q.StartDate) > time.Duration(maxRangeDays)*24*time.Hour:
		add("end_date", "range exceeds maximum number of days")
	}

	p := q.Policy
	if p.DailyStart < 0 || p.DailyEnd > entity.NewTimeOfDay(24, 0) {
		add("policy.daily_start", "working hours must lie within 00:00-24:00")
	}
	if p.DailyStart >= p.DailyEnd {
		add("policy.daily_start", "must be before daily_end")
	}
	if len(p.WorkingDays) == 0 {
		add("policy.working_days", "must not be empty")
	}
	for _, d := range p.WorkingDays {
		if d < time.Sunday || d > time.Saturday {
			add("policy.working_days", "contains an invalid weekday")
			break
		}
	}
	loc, err := p.Location()
	if err != nil {
		add("policy.time_zone", "unknown time zone "+p.TimeZone)
	}

	if !q.CoverageMode.Valid() {
		add("coverage_mode", "must be one of best, full, any")
	}
	if q.StepMinutes < 0 || time.Duration(q.StepMinutes)*time.Minute%granularity != 0 {
		add("step_minutes", fmt.Sprintf("must be a positive multiple of %d", int(granularity/time.Minute)))
	}
	if q.Limit < 0 {
		add("limit", "must not be negative")
	}

	if len(fields) > 0 {
		return nil, appErrors.NewValidationError(fields)
	}
	return loc, nil
}
