package entity

import (
	"fmt"
	"time"
)

// TimeInterval is a half-open range [Start, End).
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, fmt.Errorf("interval start %s is not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeInterval{Start: start, End: end}, nil
}

func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i TimeInterval) Overlaps(o TimeInterval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i TimeInterval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i TimeInterval) IsValid() bool {
	return i.Start.Before(i.End)
}

type BusyStatus string

const (
	StatusBusy        BusyStatus = "busy"
	StatusTentative   BusyStatus = "tentative"
	StatusOutOfOffice BusyStatus = "out-of-office"
)

// BusyInterval is a provider-normalized period in which a participant is unavailable.
type BusyInterval struct {
	TimeInterval
	ParticipantID string     `json:"participant_id"`
	Status        BusyStatus `json:"status,omitempty"`
}
