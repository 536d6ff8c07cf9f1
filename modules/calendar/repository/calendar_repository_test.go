package repository

import (
	"context"
	"testing"
	"time"

	"smartschedule/core/database"
	appErrors "smartschedule/core/errors"
	"smartschedule/modules/calendar/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) CalendarRepository {
	t.Helper()
	db, err := database.InitDB(database.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return NewCalendarRepository(db)
}

func record(id, participant string, fromHour, toHour int) entity.BusyIntervalRecord {
	return entity.BusyIntervalRecord{
		ID:            id,
		ParticipantID: participant,
		StartTs:       day.Add(time.Duration(fromHour) * time.Hour).Unix(),
		EndTs:         day.Add(time.Duration(toHour) * time.Hour).Unix(),
		Status:        "busy",
	}
}

func TestBusyIntervals(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceBusyIntervals(ctx, "alice", []entity.BusyIntervalRecord{
		record("3", "alice", 14, 15),
		record("1", "alice", 9, 10),
		record("4", "alice", 30, 31),
	}))
	require.NoError(t, repo.ReplaceBusyIntervals(ctx, "bob", []entity.BusyIntervalRecord{
		record("2", "bob", 11, 12),
	}))

	got, err := repo.ListBusyIntervals(ctx, "alice", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
	assert.Equal(t, day.Add(9*time.Hour), got[0].ToBusyInterval().Start)

	// half-open: an interval ending exactly at the window start is excluded
	got, err = repo.ListBusyIntervals(ctx, "alice", day.Add(10*time.Hour), day.Add(14*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.ReplaceBusyIntervals(ctx, "alice", nil))
	got, err = repo.ListBusyIntervals(ctx, "alice", day, day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.ListBusyIntervals(ctx, "bob", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReplaceBusyIntervalsRollsBack(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceBusyIntervals(ctx, "alice", []entity.BusyIntervalRecord{
		record("a1", "alice", 9, 10),
		record("a2", "alice", 14, 15),
	}))

	// the second row collides on the primary key, so nothing may change
	err := repo.ReplaceBusyIntervals(ctx, "alice", []entity.BusyIntervalRecord{
		record("dup", "alice", 11, 12),
		record("dup", "alice", 12, 13),
	})
	require.Error(t, err)

	got, err := repo.ListBusyIntervals(ctx, "alice", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)

	// records for another participant are refused the same way
	err = repo.ReplaceBusyIntervals(ctx, "alice", []entity.BusyIntervalRecord{record("b1", "bob", 9, 10)})
	require.Error(t, err)
	got, err = repo.ListBusyIntervals(ctx, "alice", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestConnections(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetConnection(ctx, "alice")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	conn := &entity.CalendarConnection{
		ParticipantID:  "alice",
		Provider:       "google",
		CalendarEmail:  "alice@example.com",
		AccessToken:    "old",
		RefreshToken:   "refresh",
		TokenExpiresTs: day.Unix(),
		IsActive:       true,
	}
	require.NoError(t, repo.UpsertConnection(ctx, conn))

	conn.CalendarEmail = "alice@work.example.com"
	require.NoError(t, repo.UpsertConnection(ctx, conn))

	got, err := repo.GetConnection(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@work.example.com", got.CalendarEmail)
	assert.Equal(t, day, got.TokenExpiresAt())

	expires := day.Add(time.Hour)
	require.NoError(t, repo.UpdateToken(ctx, "alice", "new", "refresh-2", expires))
	got, err = repo.GetConnection(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "refresh-2", got.RefreshToken)
	assert.Equal(t, expires, got.TokenExpiresAt())

	conn.IsActive = false
	require.NoError(t, repo.UpsertConnection(ctx, conn))
	_, err = repo.GetConnection(ctx, "alice")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
