package cryptox

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArgon2Params = Argon2Params{
	Memory:      64,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func newTestArgon2(t *testing.T) *Argon2id {
	t.Helper()
	h, err := NewArgon2id(testArgon2Params)
	require.NoError(t, err)
	return h
}

func TestArgon2id_RoundTrip(t *testing.T) {
	h := newTestArgon2(t)

	digest, err := h.Hash("abc123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=64,t=1,p=1$"), digest)

	ok, err := h.Compare("abc123", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare("abc124", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2id_SaltedDigestsDiffer(t *testing.T) {
	h := newTestArgon2(t)

	d1, err := h.Hash("abc123")
	require.NoError(t, err)
	d2, err := h.Hash("abc123")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)

	for _, d := range []string{d1, d2} {
		ok, err := h.Compare("abc123", d)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestArgon2id_CompareUsesStoredParams(t *testing.T) {
	writer := newTestArgon2(t)
	digest, err := writer.Hash("abc123")
	require.NoError(t, err)

	reader, err := NewArgon2id(Argon2Params{Memory: 128, Time: 2, Parallelism: 2, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	ok, err := reader.Compare("abc123", digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2id_RandFailure(t *testing.T) {
	h := newTestArgon2(t)
	h.rand = failingReader{}

	_, err := h.Hash("abc123")
	require.ErrorIs(t, err, common.ErrHashing)
}

func TestArgon2id_MalformedDigests(t *testing.T) {
	h := newTestArgon2(t)

	cases := map[string]string{
		"empty":         "",
		"wrong algo":    "$bcrypt$v=19$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"bad version":   "$argon2id$v=x$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"other version": "$argon2id$v=16$m=64,t=1,p=1$c2FsdA$aGFzaA",
		"bad params":    "$argon2id$v=19$m=64,t=1$c2FsdA$aGFzaA",
		"unknown param": "$argon2id$v=19$m=64,t=1,x=1$c2FsdA$aGFzaA",
		"bad salt":      "$argon2id$v=19$m=64,t=1,p=1$***$aGFzaA",
		"bad hash":      "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$***",
		"huge memory":   "$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdA$aGFzaA",
		"memory > 1GiB": "$argon2id$v=19$m=1048577,t=1,p=1$c2FsdA$aGFzaA",
		"many passes":   "$argon2id$v=19$m=64,t=4294967295,p=1$c2FsdA$aGFzaA",
		"11 passes":     "$argon2id$v=19$m=64,t=11,p=1$c2FsdA$aGFzaA",
	}
	for name, digest := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.Compare("abc123", digest)
			require.ErrorIs(t, err, common.ErrHashing)
		})
	}
}

func TestNewArgon2id_RejectsWeakParams(t *testing.T) {
	_, err := NewArgon2id(Argon2Params{Memory: 64, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}
