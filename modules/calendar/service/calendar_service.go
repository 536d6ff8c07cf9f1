package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErrors "smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/core/utils"
	availability "smartschedule/modules/availability/entity"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/repository"
	"smartschedule/modules/calendar/worker"
)

const busyIntervalIDPrefix = "bi_"

type CalendarServiceInterface interface {
	SyncBusyIntervals(ctx context.Context, participantID string, intervals []availability.BusyInterval) (int, error)
	ConnectCalendar(ctx context.Context, conn *entity.CalendarConnection) error
}

// CalendarService writes calendar data owned by this deployment and announces each
// change so cached availability for the participant is dropped.
type CalendarService struct {
	repo     repository.CalendarRepository
	notifier worker.Notifier
}

func NewCalendarService(repo repository.CalendarRepository, notifier worker.Notifier) *CalendarService {
	return &CalendarService{repo: repo, notifier: notifier}
}

// SyncBusyIntervals replaces the participant's stored busy intervals and returns how many
// were stored. The previous intervals survive any failure.
func (s *CalendarService) SyncBusyIntervals(ctx context.Context, participantID string, intervals []availability.BusyInterval) (int, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return 0, appErrors.NewAppError(appErrors.ErrInvalidInput, "participant id is required", nil)
	}

	var invalid []appErrors.FieldError
	records := make([]entity.BusyIntervalRecord, 0, len(intervals))
	for i, b := range intervals {
		if !b.IsValid() {
			invalid = append(invalid, appErrors.FieldError{
				Field:   fmt.Sprintf("busy[%d]", i),
				Message: "start must be before end",
			})
			continue
		}
		switch b.Status {
		case "", availability.StatusBusy, availability.StatusTentative, availability.StatusOutOfOffice:
		default:
			invalid = append(invalid, appErrors.FieldError{
				Field:   fmt.Sprintf("busy[%d].status", i),
				Message: "unknown status " + string(b.Status),
			})
			continue
		}
		b.ParticipantID = participantID
		records = append(records, entity.NewBusyIntervalRecord(utils.GenerateID(busyIntervalIDPrefix), b))
	}
	if len(invalid) > 0 {
		return 0, appErrors.NewAppError(appErrors.ErrInvalidInput, "invalid busy intervals", nil).WithDetails(invalid)
	}

	if err := s.repo.ReplaceBusyIntervals(ctx, participantID, records); err != nil {
		logger.Error("CalendarService:SyncBusyIntervals:ReplaceError", "participant_id", participantID, "error", err)
		return 0, appErrors.NewAppError(appErrors.ErrInternalServer, "failed to store busy intervals", err)
	}

	s.announce(ctx, participantID, "sync")
	logger.Info("CalendarService:SyncBusyIntervals:Done", "participant_id", participantID, "stored", len(records))
	return len(records), nil
}

// ConnectCalendar stores or replaces the participant's external calendar account.
func (s *CalendarService) ConnectCalendar(ctx context.Context, conn *entity.CalendarConnection) error {
	conn.ParticipantID = strings.TrimSpace(conn.ParticipantID)
	var invalid []appErrors.FieldError
	if conn.ParticipantID == "" {
		invalid = append(invalid, appErrors.FieldError{Field: "participant_id", Message: "is required"})
	}
	if conn.Provider != entity.ProviderGoogle {
		invalid = append(invalid, appErrors.FieldError{Field: "provider", Message: "must be " + entity.ProviderGoogle})
	}
	if conn.AccessToken == "" && conn.RefreshToken == "" {
		invalid = append(invalid, appErrors.FieldError{Field: "refresh_token", Message: "an access or refresh token is required"})
	}
	if len(invalid) > 0 {
		return appErrors.NewAppError(appErrors.ErrInvalidInput, "invalid calendar connection", nil).WithDetails(invalid)
	}

	if err := s.repo.UpsertConnection(ctx, conn); err != nil {
		logger.Error("CalendarService:ConnectCalendar:UpsertError", "participant_id", conn.ParticipantID, "error", err)
		return appErrors.NewAppError(appErrors.ErrInternalServer, "failed to store calendar connection", err)
	}

	s.announce(ctx, conn.ParticipantID, conn.Provider)
	logger.Info("CalendarService:ConnectCalendar:Done",
		"participant_id", conn.ParticipantID,
		"provider", conn.Provider,
		"expires_at", conn.TokenExpiresAt().Format(time.RFC3339),
	)
	return nil
}

// announce logs notifier failures; the write has already committed.
func (s *CalendarService) announce(ctx context.Context, participantID, source string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyChanged(ctx, worker.CalendarChangedPayload{ParticipantID: participantID, Source: source})
	if err != nil {
		logger.Warn("CalendarService:Announce:Error", "participant_id", participantID, "error", err)
	}
}
