// Package backendtest is a conformance suite every backend.Backend
// implementation runs from its own tests.
package backendtest

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty backend. It is called once per subtest.
type Factory func(t *testing.T) backend.Backend

// Run executes the suite against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, b backend.Backend)
	}{
		{"AllocateKey", testAllocateKey},
		{"UpsertAndQuery", testUpsertAndQuery},
		{"UpsertReplaces", testUpsertReplaces},
		{"GreaterFilter", testGreaterFilter},
		{"KeysOnly", testKeysOnly},
		{"NamespaceIsolation", testNamespaceIsolation},
		{"Delete", testDelete},
		{"EmptyNamespace", testEmptyNamespace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

func doc(uid string, ttl int64, origin string) models.Document {
	return models.Document{
		models.FieldUID:         uid,
		models.FieldHashedToken: "hash-" + uid,
		models.FieldTTL:         ttl,
		models.FieldOriginURL:   origin,
	}
}

func put(t *testing.T, b backend.Backend, ns string, d models.Document) models.Key {
	t.Helper()
	ctx := context.Background()
	key, err := b.AllocateKey(ctx, ns)
	require.NoError(t, err)
	require.NoError(t, b.Upsert(ctx, key, d))
	return key
}

func testAllocateKey(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	k1, err := b.AllocateKey(ctx, "ns")
	require.NoError(t, err)
	k2, err := b.AllocateKey(ctx, "ns")
	require.NoError(t, err)

	assert.False(t, k1.IsZero())
	assert.Equal(t, "ns", k1.Namespace)
	assert.NotEqual(t, k1, k2)
}

func testUpsertAndQuery(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	key := put(t, b, "ns", doc("u1", 1000, "/dashboard"))
	put(t, b, "ns", doc("u2", 1000, ""))

	got, err := b.Query(ctx, "ns", []backend.Filter{backend.Eq(models.FieldUID, "u1")})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, key, got[0].Key)
	rec, err := models.RecordFromDocument(got[0].Doc)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UID)
	assert.Equal(t, "hash-u1", rec.HashedToken)
	assert.Equal(t, int64(1000), rec.TTL.UnixMilli())
	assert.Equal(t, "/dashboard", rec.OriginURL)
}

func testUpsertReplaces(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	key := put(t, b, "ns", doc("u1", 1000, "/a"))

	require.NoError(t, b.Upsert(ctx, key, doc("u1", 2000, "/b")))

	all, err := b.Query(ctx, "ns", nil)
	require.NoError(t, err)
	require.Len(t, all, 1)

	rec, err := models.RecordFromDocument(all[0].Doc)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), rec.TTL.UnixMilli())
	assert.Equal(t, "/b", rec.OriginURL)
}

func testGreaterFilter(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	put(t, b, "ns", doc("old", 100, ""))
	put(t, b, "ns", doc("new", 300, ""))

	got, err := b.Query(ctx, "ns", []backend.Filter{backend.Gt(models.FieldTTL, int64(200))})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Doc[models.FieldUID])

	got, err = b.Query(ctx, "ns", []backend.Filter{
		backend.Eq(models.FieldUID, "old"),
		backend.Gt(models.FieldTTL, int64(200)),
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = b.Query(ctx, "ns", []backend.Filter{backend.Gt(models.FieldTTL, int64(300))})
	require.NoError(t, err)
	assert.Empty(t, got, "greater-than is strict")
}

func testKeysOnly(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	k1 := put(t, b, "ns", doc("u1", 1, ""))
	k2 := put(t, b, "ns", doc("u2", 1, ""))

	got, err := b.Query(ctx, "ns", nil, backend.KeysOnly())
	require.NoError(t, err)
	require.Len(t, got, 2)

	keys := []models.Key{got[0].Key, got[1].Key}
	assert.ElementsMatch(t, []models.Key{k1, k2}, keys)
	for _, e := range got {
		assert.Nil(t, e.Doc)
	}
}

func testNamespaceIsolation(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	put(t, b, "a", doc("u1", 1, ""))
	put(t, b, "b", doc("u1", 1, ""))
	put(t, b, "b", doc("u2", 1, ""))

	got, err := b.Query(ctx, "a", nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = b.Query(ctx, "b", []backend.Filter{backend.Eq(models.FieldUID, "u1")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Key.Namespace)
}

func testDelete(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	k1 := put(t, b, "ns", doc("u1", 1, ""))
	k2 := put(t, b, "ns", doc("u2", 1, ""))
	k3 := put(t, b, "ns", doc("u3", 1, ""))

	require.NoError(t, b.Delete(ctx, k1))
	got, err := b.Query(ctx, "ns", nil, backend.KeysOnly())
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, b.Delete(ctx, k2, k3))
	got, err = b.Query(ctx, "ns", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, b.Delete(ctx, k1), "deleting a missing key is not an error")
	require.NoError(t, b.Delete(ctx), "deleting nothing is not an error")
}

func testEmptyNamespace(t *testing.T, b backend.Backend) {
	got, err := b.Query(context.Background(), "nothing-here", []backend.Filter{backend.Eq(models.FieldUID, "u1")})
	require.NoError(t, err)
	assert.Empty(t, got)
}
