// Package database opens the PostgreSQL pool and applies the embedded goose
// migrations that define folio's schema: users, posts, projects, skills,
// section settings, comments and likes.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var embedMigrations embed.FS

// Connection retry policy. Postgres often comes up after the app in
// container setups, so Connect pings a few times before giving up.
var (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// Connect opens a pgx-backed connection pool for dsn and waits until the
// server answers a ping.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := ping(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connected")
	return db, nil
}

func ping(db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < connectAttempts {
			slog.Warn("database not ready", "attempt", attempt, "error", err)
			time.Sleep(connectBackoff * time.Duration(attempt))
		}
	}
	return fmt.Errorf("database ping: %w", err)
}

// gooseLogger sends goose output through slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Debug("goose: " + fmt.Sprintf(format, v...))
}

func (gooseLogger) Fatalf(format string, v ...any) {
	// goose only calls Fatalf from its CLI helpers; Up returns errors.
	slog.Error("goose: " + fmt.Sprintf(format, v...))
}

// Migrate applies pending migrations and logs the resulting schema version.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("goose version: %w", err)
	}

	slog.Info("database migrations applied", "version", version)
	return nil
}
