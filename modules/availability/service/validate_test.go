package service

import (
	"testing"
	"time"

	appErrors "smartschedule/core/errors"
	"smartschedule/modules/availability/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *entity.AvailabilityQuery)
		field  string
	}{
		{"duration too short", func(q *entity.AvailabilityQuery) { q.DurationMinutes = 10 }, "duration_minutes"},
		{"duration too long", func(q *entity.AvailabilityQuery) { q.DurationMinutes = 481 }, "duration_minutes"},
		{"no participants", func(q *entity.AvailabilityQuery) { q.ParticipantIDs = nil }, "participant_ids"},
		{"blank participant", func(q *entity.AvailabilityQuery) { q.ParticipantIDs = []string{"A", " "} }, "participant_ids"},
		{"duplicate participant", func(q *entity.AvailabilityQuery) { q.ParticipantIDs = []string{"A", "A"} }, "participant_ids"},
		{"start equals end", func(q *entity.AvailabilityQuery) { q.EndDate = q.StartDate }, "start_date"},
		{"start after end", func(q *entity.AvailabilityQuery) { q.StartDate = q.EndDate.Add(time.Hour) }, "start_date"},
		{"missing dates", func(q *entity.AvailabilityQuery) { q.StartDate = time.Time{} }, "start_date"},
		{"range too long", func(q *entity.AvailabilityQuery) { q.EndDate = q.StartDate.AddDate(0, 0, 90) }, "end_date"},
		{"inverted working hours", func(q *entity.AvailabilityQuery) { q.Policy.DailyStart = entity.NewTimeOfDay(18, 0) }, "policy.daily_start"},
		{"no working days", func(q *entity.AvailabilityQuery) { q.Policy.WorkingDays = nil }, "policy.working_days"},
		{"bad weekday", func(q *entity.AvailabilityQuery) { q.Policy.WorkingDays = []time.Weekday{9} }, "policy.working_days"},
		{"unknown zone", func(q *entity.AvailabilityQuery) { q.Policy.TimeZone = "Mars/Olympus" }, "policy.time_zone"},
		{"bad coverage mode", func(q *entity.AvailabilityQuery) { q.CoverageMode = "most" }, "coverage_mode"},
		{"bad step", func(q *entity.AvailabilityQuery) { q.StepMinutes = 20 }, "step_minutes"},
		{"negative limit", func(q *entity.AvailabilityQuery) { q.Limit = -1 }, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := scenarioQuery()
			tt.mutate(&q)

			_, err := ValidateQuery(q, 62, 15*time.Minute)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidQuery))

			appErr, ok := err.(*appErrors.AppError)
			require.True(t, ok)
			fields, ok := appErr.Details.([]appErrors.FieldError)
			require.True(t, ok)

			var names []string
			for _, f := range fields {
				names = append(names, f.Field)
			}
			assert.Contains(t, names, tt.field)
		})
	}
}

func TestValidateQuery_ReportsEveryViolation(t *testing.T) {
	q := scenarioQuery()
	q.ParticipantIDs = nil
	q.DurationMinutes = 0
	q.EndDate = q.StartDate

	_, err := ValidateQuery(q, 62, 15*time.Minute)
	require.Error(t, err)
	fields := err.(*appErrors.AppError).Details.([]appErrors.FieldError)
	assert.Len(t, fields, 3)
}

func TestValidateQuery_Accepts(t *testing.T) {
	q := scenarioQuery()
	q.Policy.TimeZone = "Europe/Berlin"
	q.DurationMinutes = 480
	q.StepMinutes = 45

	loc, err := ValidateQuery(q, 62, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestValidateQuery_StepFollowsGranularity(t *testing.T) {
	q := scenarioQuery()
	q.StepMinutes = 30

	_, err := ValidateQuery(q, 62, 20*time.Minute)
	require.Error(t, err)
	fields := err.(*appErrors.AppError).Details.([]appErrors.FieldError)
	require.Len(t, fields, 1)
	assert.Equal(t, "step_minutes", fields[0].Field)
	assert.Equal(t, "must be a positive multiple of 20", fields[0].Message)

	q.StepMinutes = 40
	_, err = ValidateQuery(q, 62, 20*time.Minute)
	assert.NoError(t, err)

	// an unset granularity falls back to 15 minutes
	q.StepMinutes = 45
	_, err = ValidateQuery(q, 62, 0)
	assert.NoError(t, err)
}
