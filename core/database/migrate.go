package database

import (
	"context"
	"fmt"
)

// Schema shared by the calendar repositories. Instants are unix seconds so the same
// statements run unchanged on postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS busy_intervals (
		id             TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		start_ts       BIGINT NOT NULL,
		end_ts         BIGINT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'busy'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_busy_intervals_participant_start
		ON busy_intervals (participant_id, start_ts)`,
	`CREATE TABLE IF NOT EXISTS calendar_connections (
		participant_id   TEXT PRIMARY KEY,
		provider         TEXT NOT NULL,
		calendar_email   TEXT NOT NULL,
		access_token     TEXT NOT NULL DEFAULT '',
		refresh_token    TEXT NOT NULL DEFAULT '',
		token_expires_ts BIGINT NOT NULL DEFAULT 0,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

func Migrate(ctx context.Context, db IDatabase) error {
	for i, stmt := range schema {
		if err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return nil
}
