package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB_SQLiteAndMigrate(t *testing.T) {
	db, err := InitDB(DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	// idempotent
	require.NoError(t, Migrate(ctx, db))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, db.Rebind(`SELECT COUNT(*) FROM busy_intervals WHERE participant_id = ?`), "alice"))
	assert.Equal(t, 0, count)
	assert.Equal(t, "sqlite", db.DriverName())
}

func TestInitDB_UnsupportedDriver(t *testing.T) {
	_, err := InitDB(DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
