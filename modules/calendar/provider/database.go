package provider

import (
	"context"
	"time"

	availability "smartschedule/modules/availability/entity"
	"smartschedule/modules/calendar/repository"
)

// DatabaseProvider reads busy intervals from the busy_intervals table.
type DatabaseProvider struct {
	repo repository.CalendarRepository
}

func NewDatabaseProvider(repo repository.CalendarRepository) *DatabaseProvider {
	return &DatabaseProvider{repo: repo}
}

func (p *DatabaseProvider) GetBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]availability.BusyInterval, error) {
	records, err := p.repo.ListBusyIntervals(ctx, participantID, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]availability.BusyInterval, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToBusyInterval())
	}
	return out, nil
}
