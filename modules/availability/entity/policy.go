package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" in 24-hour form. "24:00" is allowed as an end-of-day bound.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("time of day %q: expected HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// On returns the instant at this wall-clock time on the given date in loc.
func (t TimeOfDay) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour(), t.Minute(), 0, 0, loc)
}

// WorkingHoursPolicy bounds schedulable time to a daily window on a set of weekdays.
type WorkingHoursPolicy struct {
	DailyStart  TimeOfDay      `json:"daily_start"`
	DailyEnd    TimeOfDay      `json:"daily_end"`
	WorkingDays []time.Weekday `json:"working_days"`
	TimeZone    string         `json:"time_zone"`
}

// DefaultWorkingHours is Monday to Friday, 09:00-17:00 UTC.
func DefaultWorkingHours() WorkingHoursPolicy {
	return WorkingHoursPolicy{
		DailyStart:  NewTimeOfDay(9, 0),
		DailyEnd:    NewTimeOfDay(17, 0),
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		TimeZone:    "UTC",
	}
}

func (p WorkingHoursPolicy) Location() (*time.Location, error) {
	if p.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.TimeZone)
}

func (p WorkingHoursPolicy) IsWorkingDay(d time.Weekday) bool {
	for _, w := range p.WorkingDays {
		if w == d {
			return true
		}
	}
	return false
}

// SortedDays returns the working days deduplicated and in Sunday-first order.
func (p WorkingHoursPolicy) SortedDays() []time.Weekday {
	seen := make(map[time.Weekday]bool, len(p.WorkingDays))
	out := make([]time.Weekday, 0, len(p.WorkingDays))
	for _, d := range p.WorkingDays {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Canonical renders the policy in a stable textual form used in cache keys.
func (p WorkingHoursPolicy) Canonical() string {
	days := p.SortedDays()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", int(d))
	}
	tz := p.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("%s-%s|%s|%s", p.DailyStart, p.DailyEnd, strings.Join(parts, ","), tz)
}
