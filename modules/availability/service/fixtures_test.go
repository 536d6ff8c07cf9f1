package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"smartschedule/modules/availability/entity"
)

// 2026-03-10 is a Tuesday.
var tuesday = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return tuesday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func iv(start, end time.Time) entity.TimeInterval {
	return entity.TimeInterval{Start: start, End: end}
}

func busy(participant string, start, end time.Time) entity.BusyInterval {
	return entity.BusyInterval{TimeInterval: iv(start, end), ParticipantID: participant, Status: entity.StatusBusy}
}

func workdayPolicy() entity.WorkingHoursPolicy {
	return entity.WorkingHoursPolicy{
		DailyStart:  entity.NewTimeOfDay(9, 0),
		DailyEnd:    entity.NewTimeOfDay(17, 0),
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		TimeZone:    "UTC",
	}
}

// scenarioQuery is A busy 9-10 and 14-15, B busy 11-12 on one working day, 30 minutes.
func scenarioQuery() entity.AvailabilityQuery {
	return entity.AvailabilityQuery{
		ParticipantIDs:  []string{"B", "A"},
		DurationMinutes: 30,
		StartDate:       tuesday,
		EndDate:         tuesday.Add(24 * time.Hour),
		Policy:          workdayPolicy(),
	}
}

// fakeProvider serves fixed busy data, with optional failures and delays per participant.
type fakeProvider struct {
	mu      sync.Mutex
	busy    map[string][]entity.BusyInterval
	fail    map[string]error
	delay   map[string]time.Duration
	block   map[string]bool
	calls   map[string]int
	total   atomic.Int64
	ignored bool // ignore ctx while delaying
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		busy:  map[string][]entity.BusyInterval{},
		fail:  map[string]error{},
		delay: map[string]time.Duration{},
		block: map[string]bool{},
		calls: map[string]int{},
	}
}

func scenarioProvider() *fakeProvider {
	p := newFakeProvider()
	p.busy["A"] = []entity.BusyInterval{busy("A", at(9, 0), at(10, 0)), busy("A", at(14, 0), at(15, 0))}
	p.busy["B"] = []entity.BusyInterval{busy("B", at(11, 0), at(12, 0))}
	return p
}

func (p *fakeProvider) GetBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]entity.BusyInterval, error) {
	p.mu.Lock()
	p.calls[participantID]++
	err := p.fail[participantID]
	delay := p.delay[participantID]
	block := p.block[participantID]
	intervals := append([]entity.BusyInterval(nil), p.busy[participantID]...)
	p.mu.Unlock()
	p.total.Add(1)

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		if p.ignored {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return intervals, nil
}

func (p *fakeProvider) callsFor(participantID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[participantID]
}
