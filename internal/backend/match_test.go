package backend

import (
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	doc := models.Document{"uid": "u1", "ttl": int64(100)}

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{"no filters", nil, true},
		{"uid eq", []Filter{Eq("uid", "u1")}, true},
		{"uid ne", []Filter{Eq("uid", "u2")}, false},
		{"ttl gt lower", []Filter{Gt("ttl", int64(99))}, true},
		{"ttl gt equal", []Filter{Gt("ttl", int64(100))}, false},
		{"ttl gt int", []Filter{Gt("ttl", 50)}, true},
		{"combined", []Filter{Eq("uid", "u1"), Gt("ttl", int64(100))}, false},
		{"missing field", []Filter{Eq("originUrl", "/")}, false},
		{"type mismatch", []Filter{Eq("uid", int64(1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(doc, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_JSONNumbers(t *testing.T) {
	doc := models.Document{"ttl": float64(100)}

	ok, err := Match(doc, []Filter{Gt("ttl", int64(10))})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_Errors(t *testing.T) {
	doc := models.Document{"uid": "u1", "ttl": int64(1)}

	_, err := Match(doc, []Filter{{Field: "uid", Op: "~", Value: "u1"}})
	require.Error(t, err)

	_, err = Match(doc, []Filter{Eq("ttl", struct{}{})})
	require.Error(t, err)
}

func TestApplyQueryOptions(t *testing.T) {
	assert.False(t, ApplyQueryOptions().KeysOnly)
	assert.True(t, ApplyQueryOptions(KeysOnly()).KeysOnly)
}
