package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend/sqlstore/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// runMigrations applies the embedded migrations of d to db.
func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(d.name); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, d.dir)
}

func open(ctx context.Context, driver, dsn string, d dialect) (*Backend, error) {
	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if d.maxOpenConns > 0 {
		db.SetMaxOpenConns(d.maxOpenConns)
	}
	if err := runMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return newBackend(db, d), nil
}

// NewPostgres opens a PostgreSQL database through pgx, migrates it and
// returns the backend.
func NewPostgres(ctx context.Context, dsn string) (*Backend, error) {
	return open(ctx, "pgx", dsn, postgresDialect)
}

// NewSQLite opens a SQLite database file (or a file: URI), migrates it and
// returns the backend. SQLite allows a single writer, so the pool is limited
// to one connection.
func NewSQLite(ctx context.Context, path string) (*Backend, error) {
	return open(ctx, "sqlite", path, sqliteDialect)
}

// NewPostgresFromDB wraps an already migrated PostgreSQL connection.
func NewPostgresFromDB(db *sql.DB) *Backend {
	return newBackend(db, postgresDialect)
}
