package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:30", want: NewTimeOfDay(9, 30)},
		{in: "00:00", want: 0},
		{in: "24:00", want: NewTimeOfDay(24, 0)},
		{in: "24:30", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "-1:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	var p WorkingHoursPolicy
	require.NoError(t, json.Unmarshal([]byte(`{"daily_start":"08:15","daily_end":"16:45","working_days":[1,3],"time_zone":"Europe/Paris"}`), &p))
	assert.Equal(t, NewTimeOfDay(8, 15), p.DailyStart)
	assert.Equal(t, "16:45", p.DailyEnd.String())

	b, err := json.Marshal(p.DailyStart)
	require.NoError(t, err)
	assert.JSONEq(t, `"08:15"`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"daily_start":"25:00"}`), &p))
}

func TestPolicyCanonicalIgnoresDayOrder(t *testing.T) {
	a := WorkingHoursPolicy{DailyStart: NewTimeOfDay(9, 0), DailyEnd: NewTimeOfDay(17, 0), WorkingDays: []time.Weekday{time.Friday, time.Monday, time.Monday}}
	b := WorkingHoursPolicy{DailyStart: NewTimeOfDay(9, 0), DailyEnd: NewTimeOfDay(17, 0), WorkingDays: []time.Weekday{time.Monday, time.Friday}, TimeZone: "UTC"}

	assert.Equal(t, "09:00-17:00|1,5|UTC", a.Canonical())
	assert.Equal(t, a.Canonical(), b.Canonical())
}

func TestTimeIntervalHalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	a := TimeInterval{Start: base, End: base.Add(time.Hour)}
	b := TimeInterval{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Contains(base))
	assert.False(t, a.Contains(a.End))

	_, err := NewTimeInterval(a.End, a.Start)
	assert.Error(t, err)
}

func TestRankedResultClone(t *testing.T) {
	r := &RankedResult{
		Slots: []RankedSlot{{
			AvailabilitySlot: AvailabilitySlot{AvailableParticipants: []string{"A"}, TotalParticipants: 2},
			Reason:           []string{"morning slot"},
		}},
		DataQuality: map[string]ParticipantStatus{"A": StatusOK, "B": StatusTimeout},
	}

	c := r.Clone()
	c.Slots[0].AvailableParticipants[0] = "Z"
	c.Slots[0].Reason[0] = "changed"
	c.DataQuality["A"] = StatusDegradedToFree

	assert.Equal(t, "A", r.Slots[0].AvailableParticipants[0])
	assert.Equal(t, "morning slot", r.Slots[0].Reason[0])
	assert.Equal(t, StatusOK, r.DataQuality["A"])
	assert.False(t, r.AllOK())
	assert.Equal(t, 0.5, r.Slots[0].Coverage())
}
