package sqlstore

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/backendtest"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteBackend(t *testing.T) *Backend {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	b, err := NewSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLite_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend { return newSQLiteBackend(t) })
}

func TestSQLite_MigrationsAreIdempotent(t *testing.T) {
	b := newSQLiteBackend(t)
	require.NoError(t, runMigrations(context.Background(), b.db, sqliteDialect))
}

func TestSQLite_UnknownField(t *testing.T) {
	b := newSQLiteBackend(t)

	_, err := b.Query(context.Background(), "ns", []backend.Filter{backend.Eq("password", "x")})
	require.Error(t, err)
}

func TestSQLite_UpsertRejectsIncompleteDocument(t *testing.T) {
	b := newSQLiteBackend(t)

	err := b.Upsert(context.Background(), models.Key{Namespace: "ns", ID: "k"}, models.Document{models.FieldUID: "u1"})
	require.Error(t, err)
}

func TestSQLite_DeleteManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t)

	var keys []models.Key
	for _, uid := range []string{"u1", "u2", "u3"} {
		k, err := b.AllocateKey(ctx, "ns")
		require.NoError(t, err)
		require.NoError(t, b.Upsert(ctx, k, models.Document{
			models.FieldUID:         uid,
			models.FieldHashedToken: "h",
			models.FieldTTL:         int64(1),
		}))
		keys = append(keys, k)
	}

	require.NoError(t, b.Delete(ctx, keys...))

	var n int
	require.NoError(t, b.db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&n))
	assert.Equal(t, 0, n)
}
