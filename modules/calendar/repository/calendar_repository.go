package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartschedule/core/database"
	appErrors "smartschedule/core/errors"
	"smartschedule/modules/calendar/entity"
)

type CalendarRepository interface {
	// Busy intervals
	ReplaceBusyIntervals(ctx context.Context, participantID string, records []entity.BusyIntervalRecord) error
	ListBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]entity.BusyIntervalRecord, error)

	// Calendar connections
	UpsertConnection(ctx context.Context, conn *entity.CalendarConnection) error
	GetConnection(ctx context.Context, participantID string) (*entity.CalendarConnection, error)
	UpdateToken(ctx context.Context, participantID, accessToken, refreshToken string, expiresAt time.Time) error
}

type calendarRepository struct {
	db database.IDatabase
}

func NewCalendarRepository(db database.IDatabase) CalendarRepository {
	return &calendarRepository{db: db}
}

// ReplaceBusyIntervals swaps every stored interval of participantID for records in one
// transaction. On any failure the previous intervals are kept.
func (r *calendarRepository) ReplaceBusyIntervals(ctx context.Context, participantID string, records []entity.BusyIntervalRecord) error {
	tx, err := r.db.SQLx().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM busy_intervals WHERE participant_id = ?`), participantID); err != nil {
		return err
	}

	query := `
		INSERT INTO busy_intervals (id, participant_id, start_ts, end_ts, status)
		VALUES (:id, :participant_id, :start_ts, :end_ts, :status)
	`
	for _, rec := range records {
		if rec.ParticipantID != participantID {
			return fmt.Errorf("record %s belongs to %q, not %q", rec.ID, rec.ParticipantID, participantID)
		}
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListBusyIntervals returns the participant's intervals overlapping [start, end), earliest first.
func (r *calendarRepository) ListBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]entity.BusyIntervalRecord, error) {
	query := r.db.Rebind(`
		SELECT id, participant_id, start_ts, end_ts, status
		FROM busy_intervals
		WHERE participant_id = ? AND start_ts < ? AND end_ts > ?
		ORDER BY start_ts ASC, end_ts ASC
	`)
	records := []entity.BusyIntervalRecord{}
	if err := r.db.SelectContext(ctx, &records, query, participantID, end.Unix(), start.Unix()); err != nil {
		return nil, err
	}
	return records, nil
}

// UpsertConnection creates or replaces the participant's calendar connection.
func (r *calendarRepository) UpsertConnection(ctx context.Context, conn *entity.CalendarConnection) error {
	query := `
		INSERT INTO calendar_connections (participant_id, provider, calendar_email, access_token, refresh_token, token_expires_ts, is_active)
		VALUES (:participant_id, :provider, :calendar_email, :access_token, :refresh_token, :token_expires_ts, :is_active)
		ON CONFLICT (participant_id) DO UPDATE SET
			provider = excluded.provider,
			calendar_email = excluded.calendar_email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expires_ts = excluded.token_expires_ts,
			is_active = excluded.is_active
	`
	_, err := r.db.NamedExecContext(ctx, query, conn)
	return err
}

// GetConnection returns the participant's active connection, or ErrNotFound.
func (r *calendarRepository) GetConnection(ctx context.Context, participantID string) (*entity.CalendarConnection, error) {
	query := r.db.Rebind(`
		SELECT participant_id, provider, calendar_email, access_token, refresh_token, token_expires_ts, is_active
		FROM calendar_connections
		WHERE participant_id = ? AND is_active = ?
	`)
	var conn entity.CalendarConnection
	if err := r.db.GetContext(ctx, &conn, query, participantID, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewAppError(appErrors.ErrNotFound, "no calendar connected for "+participantID, err)
		}
		return nil, err
	}
	return &conn, nil
}

func (r *calendarRepository) UpdateToken(ctx context.Context, participantID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := r.db.Rebind(`
		UPDATE calendar_connections
		SET access_token = ?, refresh_token = ?, token_expires_ts = ?
		WHERE participant_id = ?
	`)
	return r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt.Unix(), participantID)
}
