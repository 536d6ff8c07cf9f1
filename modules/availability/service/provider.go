package service

import (
	"context"
	"time"

	"smartschedule/modules/availability/entity"
)

// CalendarAvailabilityProvider returns a participant's busy intervals in [start, end).
// Implementations must honour ctx cancellation. Any returned error marks the participant's
// data as unavailable for the query.
type CalendarAvailabilityProvider interface {
	GetBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]entity.BusyInterval, error)
}

// ProviderFunc adapts a function to CalendarAvailabilityProvider.
type ProviderFunc func(ctx context.Context, participantID string, start, end time.Time) ([]entity.BusyInterval, error)

func (f ProviderFunc) GetBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]entity.BusyInterval, error) {
	return f(ctx, participantID, start, end)
}
