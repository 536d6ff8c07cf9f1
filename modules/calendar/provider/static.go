package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"smartschedule/core/logger"
	availability "smartschedule/modules/availability/entity"

	"gopkg.in/yaml.v3"
)

// StaticCalendar is one participant's entry in a static calendar file.
type StaticCalendar struct {
	Busy []StaticBusy `yaml:"busy"`
	// Fail makes every fetch return this message as an error.
	Fail string `yaml:"fail,omitempty"`
	// Delay is applied before answering, honouring cancellation.
	Delay time.Duration `yaml:"delay,omitempty"`
}

type StaticBusy struct {
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
	Status string    `yaml:"status,omitempty"`
}

type staticFile struct {
	Participants map[string]StaticCalendar `yaml:"participants"`
}

// StaticProvider serves busy intervals from memory. Unknown participants are entirely free.
type StaticProvider struct {
	mu        sync.RWMutex
	calendars map[string]StaticCalendar
}

func NewStaticProvider(calendars map[string]StaticCalendar) *StaticProvider {
	if calendars == nil {
		calendars = map[string]StaticCalendar{}
	}
	return &StaticProvider{calendars: calendars}
}

// ParseStaticProvider reads a YAML document of the form
//
//	participants:
//	  alice:
//	    busy:
//	      - {start: 2026-03-10T09:00:00Z, end: 2026-03-10T10:00:00Z}
//	    delay: 200ms
func ParseStaticProvider(data []byte) (*StaticProvider, error) {
	calendars, err := ParseStaticCalendars(data)
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(calendars), nil
}

// ParseStaticCalendars decodes and checks the participants of a static calendar file.
func ParseStaticCalendars(data []byte) (map[string]StaticCalendar, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse static calendars: %w", err)
	}
	for id, cal := range f.Participants {
		for i, b := range cal.Busy {
			if !b.Start.Before(b.End) {
				return nil, fmt.Errorf("participant %s: busy[%d] start is not before end", id, i)
			}
		}
	}
	if f.Participants == nil {
		f.Participants = map[string]StaticCalendar{}
	}
	return f.Participants, nil
}

// Intervals converts the calendar's busy entries, in file order.
func (c StaticCalendar) Intervals(participantID string) []availability.BusyInterval {
	out := make([]availability.BusyInterval, 0, len(c.Busy))
	for _, b := range c.Busy {
		status := availability.BusyStatus(b.Status)
		if status == "" {
			status = availability.StatusBusy
		}
		out = append(out, availability.BusyInterval{
			TimeInterval:  availability.TimeInterval{Start: b.Start.UTC(), End: b.End.UTC()},
			ParticipantID: participantID,
			Status:        status,
		})
	}
	return out
}

func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStaticProvider(data)
}

// Set replaces one participant's calendar.
func (p *StaticProvider) Set(participantID string, cal StaticCalendar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calendars[participantID] = cal
}

func (p *StaticProvider) GetBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]availability.BusyInterval, error) {
	p.mu.RLock()
	cal := p.calendars[participantID]
	p.mu.RUnlock()

	if cal.Delay > 0 {
		timer := time.NewTimer(cal.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if cal.Fail != "" {
		logger.Debug("StaticProvider:GetBusyIntervals:InjectedFailure", "participant_id", participantID)
		return nil, fmt.Errorf("static calendar %s: %s", participantID, cal.Fail)
	}

	window := availability.TimeInterval{Start: start, End: end}
	out := make([]availability.BusyInterval, 0, len(cal.Busy))
	for _, b := range cal.Intervals(participantID) {
		if b.Overlaps(window) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
