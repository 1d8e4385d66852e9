// Package store implements the token lifecycle: one active hashed token per
// user, created or replaced on request, verified against its expiry and
// revoked per user or all at once.
//
// The store holds no mutable state beyond its construction-time settings.
// Each operation is a short sequence of backend calls that is not wrapped in
// a transaction, so two concurrent StoreOrUpdate calls for the same uid end
// with whichever upsert commits last.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
)

// DefaultNamespace is the storage namespace used when none is configured.
const DefaultNamespace = "passwordless-token"

// TokenStore is the contract of a passwordless token store.
type TokenStore interface {
	// Authenticate reports whether token is the current, unexpired token of
	// uid and, if so, returns the origin URL stored with it. Unknown uid,
	// expired record and wrong token are indistinguishable: all yield false.
	Authenticate(ctx context.Context, token, uid string) (bool, string, error)

	// StoreOrUpdate hashes token and stores it as the only token of uid,
	// valid for ttl from now.
	StoreOrUpdate(ctx context.Context, token, uid string, ttl time.Duration, originURL string) error

	// InvalidateUser removes the token of uid. Removing a missing token succeeds.
	InvalidateUser(ctx context.Context, uid string) error

	// Clear removes every stored token.
	Clear(ctx context.Context) error

	// Length returns the number of stored records, expired ones included.
	Length(ctx context.Context) (int, error)
}

// Store is the TokenStore over a backend.Backend.
type Store struct {
	backend   backend.Backend
	hasher    cryptox.Hasher
	namespace string
	now       func() time.Time
}

var _ TokenStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithNamespace sets the storage namespace.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h cryptox.Hasher) Option {
	return func(s *Store) { s.hasher = h }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New constructs a Store bound to b. A backend exposing Ready() bool that
// reports false, such as a typed nil pointer, is rejected as
// ErrInvalidArgument.
func New(b backend.Backend, opts ...Option) (*Store, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: backend is required", common.ErrInvalidArgument)
	}
	if r, ok := b.(interface{ Ready() bool }); ok && !r.Ready() {
		return nil, fmt.Errorf("%w: backend %T is not initialised", common.ErrInvalidArgument, b)
	}

	s := &Store{
		backend:   b,
		namespace: DefaultNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.namespace == "" {
		return nil, fmt.Errorf("%w: namespace is empty", common.ErrInvalidArgument)
	}
	if s.hasher == nil {
		h, err := cryptox.NewBcrypt(cryptox.DefaultBcryptCost)
		if err != nil {
			return nil, err
		}
		s.hasher = h
	}
	return s, nil
}

// Namespace returns the storage namespace.
func (s *Store) Namespace() string {
	return s.namespace
}

func (s *Store) Authenticate(ctx context.Context, token, uid string) (bool, string, error) {
	if token == "" || uid == "" {
		return false, "", fmt.Errorf("%w: token and uid are required", common.ErrInvalidArgument)
	}

	entities, err := s.backend.Query(ctx, s.namespace, []backend.Filter{
		backend.Eq(models.FieldUID, uid),
		backend.Gt(models.FieldTTL, s.now().UnixMilli()),
	})
	if err != nil {
		return false, "", storageError(err)
	}
	if len(entities) == 0 {
		return false, "", nil
	}

	rec, err := models.RecordFromDocument(entities[0].Doc)
	if err != nil {
		return false, "", storageError(err)
	}
	// backends without server-side range filters may hand back stale rows
	if rec.Expired(s.now()) {
		return false, "", nil
	}

	ok, err := s.hasher.Compare(token, rec.HashedToken)
	if err != nil {
		return false, "", hashingError(err)
	}
	if !ok {
		return false, "", nil
	}
	return true, rec.OriginURL, nil
}

func (s *Store) StoreOrUpdate(ctx context.Context, token, uid string, ttl time.Duration, originURL string) error {
	if token == "" || uid == "" {
		return fmt.Errorf("%w: token and uid are required", common.ErrInvalidArgument)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", common.ErrInvalidArgument, ttl)
	}

	hashed, err := s.hasher.Hash(token)
	if err != nil {
		return hashingError(err)
	}

	rec := &models.TokenRecord{
		UID:         uid,
		HashedToken: hashed,
		TTL:         s.now().Add(ttl),
		OriginURL:   originURL,
	}

	// any record of uid, expired or not, gets overwritten in place
	existing, err := s.backend.Query(ctx, s.namespace, []backend.Filter{backend.Eq(models.FieldUID, uid)}, backend.KeysOnly())
	if err != nil {
		return storageError(err)
	}

	var key models.Key
	if len(existing) > 0 {
		key = existing[0].Key
	} else {
		key, err = s.backend.AllocateKey(ctx, s.namespace)
		if err != nil {
			return storageError(err)
		}
	}

	if err := s.backend.Upsert(ctx, key, rec.Document()); err != nil {
		return storageError(err)
	}
	return nil
}

func (s *Store) InvalidateUser(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid is required", common.ErrInvalidArgument)
	}

	entities, err := s.backend.Query(ctx, s.namespace, []backend.Filter{backend.Eq(models.FieldUID, uid)}, backend.KeysOnly())
	if err != nil {
		return storageError(err)
	}
	return s.deleteEntities(ctx, entities)
}

func (s *Store) Clear(ctx context.Context) error {
	entities, err := s.backend.Query(ctx, s.namespace, nil, backend.KeysOnly())
	if err != nil {
		return storageError(err)
	}
	return s.deleteEntities(ctx, entities)
}

func (s *Store) Length(ctx context.Context) (int, error) {
	entities, err := s.backend.Query(ctx, s.namespace, nil, backend.KeysOnly())
	if err != nil {
		return 0, storageError(err)
	}
	return len(entities), nil
}

func (s *Store) deleteEntities(ctx context.Context, entities []backend.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	keys := make([]models.Key, len(entities))
	for i, e := range entities {
		keys[i] = e.Key
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return storageError(err)
	}
	return nil
}

func hashingError(err error) error {
	if errors.Is(err, common.ErrHashing) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrHashing, err)
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}
