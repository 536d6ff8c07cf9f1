package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartschedule/core/constants"
	"smartschedule/core/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type IDatabase interface {
	ExecContext(ctx context.Context, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	Rebind(query string) string
	DriverName() string
	SQLx() *sqlx.DB
	Close() error
}

type Database struct {
	sqlx *sqlx.DB
}

type DatabaseConfig struct {
	Driver          string // postgres | sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func InitDB(config DatabaseConfig) (*Database, error) {
	logger.Info("Database:Init", "driver", config.Driver)

	driver := config.Driver
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlxDB, err := sqlx.Connect(driver, config.DSN)
	if err != nil {
		logger.Error("Database:Init:ConnectError", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = constants.DatabaseMaxOpenConns
	}
	maxIdle := config.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = constants.DatabaseMaxIdleConns
	}
	lifetime := config.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Duration(constants.DatabaseConnMaxLifetime) * time.Minute
	}

	// a sqlite :memory: database lives only as long as its one connection
	if driver == "sqlite" {
		maxOpen, maxIdle = 1, 1
		lifetime = 0
	}

	sqlxDB.SetMaxOpenConns(maxOpen)
	sqlxDB.SetMaxIdleConns(maxIdle)
	sqlxDB.SetConnMaxLifetime(lifetime)

	logger.Info("Database:Init:Success",
		"driver", driver,
		"maxOpenConns", maxOpen,
		"maxIdleConns", maxIdle,
		"connMaxLifetime", lifetime,
	)

	return &Database{sqlx: sqlxDB}, nil
}

func (d *Database) ExecContext(ctx context.Context, query string, args ...any) error {
	_, err := d.sqlx.ExecContext(ctx, query, args...)
	return err
}

func (d *Database) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return d.sqlx.GetContext(ctx, dest, query, args...)
}

func (d *Database) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return d.sqlx.SelectContext(ctx, dest, query, args...)
}

func (d *Database) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sqlx.QueryRowContext(ctx, query, args...)
}

func (d *Database) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return d.sqlx.NamedExecContext(ctx, query, arg)
}

// Rebind converts '?' placeholders to the driver's bindvar style.
func (d *Database) Rebind(query string) string {
	return d.sqlx.Rebind(query)
}

func (d *Database) DriverName() string {
	return d.sqlx.DriverName()
}

func (d *Database) SQLx() *sqlx.DB {
	return d.sqlx
}

func (d *Database) Close() error {
	return d.sqlx.Close()
}
