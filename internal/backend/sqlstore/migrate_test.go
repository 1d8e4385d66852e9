package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	orig := sqlOpen
	sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return db, err
	}
	t.Cleanup(func() { sqlOpen = orig })
}

func TestNewPostgres_RunsPostgresMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stubOpen(t, db, nil)
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "postgres" {
			return errors.New("unexpected dir " + dir)
		}
		return nil
	})

	b, err := NewPostgres(context.Background(), "postgres://localhost/tokens")
	require.NoError(t, err)
	require.NotNil(t, b)
}

func TestNewPostgres_MigrationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	stubOpen(t, db, nil)
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	})

	_, err = NewPostgres(context.Background(), "postgres://localhost/tokens")
	require.ErrorContains(t, err, "migration error: boom")
	require.NoError(t, mock.ExpectationsWereMet(), "connection must be closed on failure")
}

func TestNewPostgres_OpenError(t *testing.T) {
	stubOpen(t, nil, errors.New("bad dsn"))

	_, err := NewPostgres(context.Background(), "::")
	require.ErrorContains(t, err, "db open error: bad dsn")
}
